package pagination

import "github.com/gofiber/fiber/v2"

// Params represents pagination parameters
type Params struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// Meta represents pagination metadata
type Meta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

// MaxLimit is the maximum number of items per page
const MaxLimit = 100

// GetParams reads page and limit from the query string, clamped to
// [1, MaxLimit]. Malformed values fall back to page 1 and defaultLimit.
func GetParams(c *fiber.Ctx, defaultLimit int) Params {
	p := Params{Page: c.QueryInt("page", 1), Limit: c.QueryInt("limit", defaultLimit)}
	if p.Page < 1 {
		p.Page = 1
	}
	switch {
	case p.Limit < 1:
		p.Limit = defaultLimit
	case p.Limit > MaxLimit:
		p.Limit = MaxLimit
	}
	return p
}

// NewMeta calculates pagination metadata
func NewMeta(page, limit int, total int64) *Meta {
	totalPages := 0
	if limit > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}

	return &Meta{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

// Response represents paginated response
type Response struct {
	Data interface{} `json:"data"`
	Meta *Meta       `json:"meta"`
}

// NewResponse creates a new paginated response
func NewResponse(data interface{}, page, limit int, total int64) *Response {
	return &Response{
		Data: data,
		Meta: NewMeta(page, limit, total),
	}
}
