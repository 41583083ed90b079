// Package pagination normalizes limit/offset windows over ordered results.
package pagination

// LimitConfig configures limit normalization.
type LimitConfig struct {
	Default int
	Max     int
}

// ClampLimit applies defaults and limits for page sizes.
func ClampLimit(value int, cfg LimitConfig) int {
	limit := value
	if limit <= 0 {
		limit = cfg.Default
	}
	if cfg.Max > 0 && limit > cfg.Max {
		limit = cfg.Max
	}
	if limit <= 0 {
		limit = 1
	}
	return limit
}

// Window returns the [start, end) bounds of a page over total items.
// Negative offsets start at zero; offsets past the end yield an empty
// window.
func Window(total, offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return total, total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return offset, end
}
