package pagination

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params holds pagination parameters extracted from a request.
type Params struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// FromContext extracts pagination parameters from the echo context.
// An explicit offset wins over a 1-based page number.
func FromContext(c echo.Context) Params {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if offset <= 0 {
		if page, _ := strconv.Atoi(c.QueryParam("page")); page > 1 {
			offset = (page - 1) * limit
		}
	}
	if offset < 0 {
		offset = 0
	}

	return Params{Limit: limit, Offset: offset}
}

// Response wraps a paginated API response.
type Response struct {
	Data    interface{} `json:"data"`
	Total   int         `json:"total"`
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
	Page    int         `json:"page"`
	HasMore bool        `json:"has_more"`
	Links   []Link      `json:"links,omitempty"`
}

func NewResponse(data interface{}, total, limit, offset int) *Response {
	p := Params{Limit: limit, Offset: offset}
	return &Response{
		Data:    data,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		Page:    p.Page(),
		HasMore: p.HasNext(total),
	}
}

// WithLinks attaches navigation links built from basePath and the request's
// non-paging query parameters.
func (r *Response) WithLinks(basePath string, query url.Values, total int) *Response {
	r.Links = Params{Limit: r.Limit, Offset: r.Offset}.Links(basePath, query, total)
	return r
}

// SQL returns the LIMIT and OFFSET clause for SQL queries.
func (p Params) SQL() string {
	return fmt.Sprintf("LIMIT %d OFFSET %d", p.Limit, p.Offset)
}

// Page returns the 1-based page number of the current offset.
func (p Params) Page() int {
	if p.Limit <= 0 {
		return 1
	}
	return p.Offset/p.Limit + 1
}

// HasNext returns true if there are more results after the current page.
func (p Params) HasNext(total int) bool {
	return p.Offset+p.Limit < total
}

// HasPrevious returns true if there are results before the current page.
func (p Params) HasPrevious() bool {
	return p.Offset > 0
}

// NextOffset returns the offset for the next page.
func (p Params) NextOffset() int {
	return p.Offset + p.Limit
}

// PreviousOffset returns the offset for the previous page.
// Returns 0 if the result would be negative.
func (p Params) PreviousOffset() int {
	prev := p.Offset - p.Limit
	if prev < 0 {
		return 0
	}
	return prev
}

// Links generates self/next/previous links for a listing. Filters in query
// are preserved; limit, offset and page are replaced.
func (p Params) Links(basePath string, query url.Values, total int) []Link {
	links := []Link{{Relation: "self", URL: p.pageURL(basePath, query, p.Offset)}}

	if p.HasNext(total) {
		links = append(links, Link{Relation: "next", URL: p.pageURL(basePath, query, p.NextOffset())})
	}
	if p.HasPrevious() {
		links = append(links, Link{Relation: "previous", URL: p.pageURL(basePath, query, p.PreviousOffset())})
	}
	return links
}

func (p Params) pageURL(basePath string, query url.Values, offset int) string {
	q := url.Values{}
	for k, v := range query {
		if k == "limit" || k == "offset" || k == "page" || k == "nav" {
			continue
		}
		q[k] = v
	}
	q.Set("limit", strconv.Itoa(p.Limit))
	q.Set("offset", strconv.Itoa(offset))
	return basePath + "?" + q.Encode()
}

// Link represents a single navigation link.
type Link struct {
	Relation string `json:"relation"`
	URL      string `json:"url"`
}
