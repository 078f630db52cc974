package models

// PageLink is one entry of the paginator's links array.
type PageLink struct {
	URL    *string `json:"url"`
	Label  string  `json:"label"`
	Active bool    `json:"active"`
}

// Page is the backend's paginated envelope.
type Page[T any] struct {
	CurrentPage  int        `json:"current_page"`
	Data         []T        `json:"data"`
	FirstPageURL string     `json:"first_page_url,omitempty"`
	From         int        `json:"from"`
	LastPage     int        `json:"last_page"`
	LastPageURL  string     `json:"last_page_url,omitempty"`
	Links        []PageLink `json:"links,omitempty"`
	NextPageURL  *string    `json:"next_page_url,omitempty"`
	Path         string     `json:"path,omitempty"`
	PerPage      int        `json:"per_page"`
	PrevPageURL  *string    `json:"prev_page_url,omitempty"`
	To           int        `json:"to"`
	Total        int        `json:"total"`
}

// Normalize fills zero pagination fields so an empty response renders as
// page 1 of 1.
func (p *Page[T]) Normalize(page, perPage int) {
	if p.CurrentPage <= 0 {
		p.CurrentPage = max(page, 1)
	}
	if p.PerPage <= 0 {
		p.PerPage = perPage
	}
	if p.LastPage <= 0 {
		p.LastPage = 1
	}
	if p.Data == nil {
		p.Data = []T{}
	}
}

// MutationResult is the {message, data} envelope of mutating endpoints.
type MutationResult[T any] struct {
	Message string `json:"message"`
	Data    T      `json:"data"`
}
