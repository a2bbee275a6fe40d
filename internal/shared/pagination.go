package shared

import "strconv"

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Page carries limit/offset listing bounds.
type Page struct {
	Limit  int
	Offset int
}

// ParsePage reads limit and offset query values, clamping them to sane bounds.
func ParsePage(limitRaw, offsetRaw string) Page {
	limit, err := strconv.Atoi(limitRaw)
	if err != nil || limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	offset, err := strconv.Atoi(offsetRaw)
	if err != nil || offset < 0 {
		offset = 0
	}
	return Page{Limit: limit, Offset: offset}
}
