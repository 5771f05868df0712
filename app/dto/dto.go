// Package dto holds the request and response shapes of the HTTP API
package dto

// APIResponse is the envelope of every JSON response
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   any    `json:"error,omitempty"`
}

// ErrorDetail carries a machine readable code for failed requests
type ErrorDetail struct {
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

// PageRequest is the 1-based paging shared by list endpoints.
// Zero values select the first page and the default size.
type PageRequest struct {
	Page     uint `json:"page,omitempty"`
	PageSize uint `json:"page_size,omitempty"`
}

// LimitOffset converts the page into a limit and offset, clamping the size to maxSize
func (p PageRequest) LimitOffset(defaultSize, maxSize uint) (limit, offset int) {
	size := p.PageSize
	if size == 0 {
		size = defaultSize
	}
	if size > maxSize {
		size = maxSize
	}
	page := p.Page
	if page == 0 {
		page = 1
	}
	return int(size), int((page - 1) * size)
}
