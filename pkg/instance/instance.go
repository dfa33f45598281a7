package instance

import "github.com/shopzen/shopzen-backend/pkg/env"

const defaultID = "local"

// GetID identifies this process in logs and cron lock ownership. Platform
// provided names are used when no explicit id is set.
func GetID() string {
	return env.First(defaultID, "SHOPZEN_INSTANCE_ID", "DYNO", "HOSTNAME")
}
