package api

import (
	"net/http"

	"github.com/aslmarket/aslmatch/internal/pkg/httputil"
)

// Window is a parsed list window. Clients page either with offset or with a
// 1-based page number; offset wins when both are sent.
type Window struct {
	Limit  int
	Offset int
}

func listWindow(r *http.Request, defaultLimit, maxLimit int) Window {
	limit := httputil.QueryInt(r, "limit", defaultLimit)
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	offset := httputil.QueryInt(r, "offset", -1)
	if offset < 0 {
		page := httputil.QueryInt(r, "page", 1)
		if page < 1 {
			page = 1
		}
		offset = (page - 1) * limit
	}
	return Window{Limit: limit, Offset: offset}
}

// ListPage is the envelope of offset-paginated lists. NextOffset is absent
// on the last page.
type ListPage[T any] struct {
	Items      []T  `json:"items"`
	Total      int  `json:"total"`
	Limit      int  `json:"limit"`
	Offset     int  `json:"offset"`
	NextOffset *int `json:"next_offset,omitempty"`
}

func newListPage[T any](items []T, w Window, total int) ListPage[T] {
	if items == nil {
		items = []T{}
	}
	p := ListPage[T]{Items: items, Total: total, Limit: w.Limit, Offset: w.Offset}
	if next := w.Offset + len(items); len(items) > 0 && next < total {
		p.NextOffset = &next
	}
	return p
}
