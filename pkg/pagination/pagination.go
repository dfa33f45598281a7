package pagination

const (
	// DefaultLimit is the standard page size when a limit is not provided.
	DefaultLimit = 20
	// MaxLimit caps how many rows any list query can request.
	MaxLimit = 100
)

// Params holds offset pagination inputs from controllers or services.
type Params struct {
	Limit  int
	Offset int
}

// Page is the response envelope shared by list endpoints.
type Page[T any] struct {
	Items  []T   `json:"items"`
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

// NormalizeLimit enforces def when limit is unset and MaxLimit as the ceiling.
func NormalizeLimit(limit, def int) int {
	if def <= 0 {
		def = DefaultLimit
	}
	if limit <= 0 {
		return def
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// Normalize clamps limit and offset in place and returns the result.
func (p Params) Normalize(def int) Params {
	p.Limit = NormalizeLimit(p.Limit, def)
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// FromPage converts a 1-based page number into offset params.
func FromPage(page, limit, def int) (Params, int) {
	if page < 1 {
		page = 1
	}
	limit = NormalizeLimit(limit, def)
	return Params{Limit: limit, Offset: (page - 1) * limit}, page
}

// HasNext reports whether rows exist past the current window.
func HasNext(total int64, p Params) bool {
	return int64(p.Offset+p.Limit) < total
}
