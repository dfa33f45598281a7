package migrate

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"text/template"

	"github.com/pressly/goose/v3"
)

var unsafeNameChars = regexp.MustCompile(`[^a-z0-9]+`)

var sqlMigrationTemplate = template.Must(template.New("shopzen.sql-migration").Parse(`-- +goose Up
-- +goose StatementBegin
-- version {{.Version}}
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- rollback {{.Version}}
-- +goose StatementEnd
`))

// CreateSQLMigration has goose write a timestamped SQL migration for name,
// reduced to snake_case, and returns the new file's path.
func CreateSQLMigration(dir string, name string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("dir is required")
	}
	slug := strings.Trim(unsafeNameChars.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if slug == "" {
		return "", fmt.Errorf("migration name %q has no usable characters", name)
	}

	goose.SetBaseFS(nil)
	goose.SetSequential(false)
	if err := goose.CreateWithTemplate(nil, dir, sqlMigrationTemplate, slug, "sql"); err != nil {
		return "", fmt.Errorf("create migration %s: %w", slug, err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*_"+slug+".sql"))
	if err != nil || len(matches) == 0 {
		return "", fmt.Errorf("locate created migration %s: %v", slug, err)
	}
	sort.Strings(matches)
	return matches[len(matches)-1], nil
}
