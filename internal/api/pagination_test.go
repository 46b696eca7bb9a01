package api

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestListWindow(t *testing.T) {
	tests := []struct {
		query string
		want  Window
	}{
		{"", Window{Limit: 20, Offset: 0}},
		{"?limit=500", Window{Limit: 100, Offset: 0}},
		{"?limit=0", Window{Limit: 20, Offset: 0}},
		{"?page=3&limit=10", Window{Limit: 10, Offset: 20}},
		{"?page=-2", Window{Limit: 20, Offset: 0}},
		{"?offset=7&page=3", Window{Limit: 20, Offset: 7}},
		{"?limit=abc", Window{Limit: 20, Offset: 0}},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("GET", "/x"+tt.query, nil)
		assert.Equal(t, tt.want, listWindow(r, 20, 100), tt.query)
	}
}

func TestNewListPage(t *testing.T) {
	p := newListPage([]string{"a", "b"}, Window{Limit: 2, Offset: 0}, 5)
	if assert.NotNil(t, p.NextOffset) {
		assert.Equal(t, 2, *p.NextOffset)
	}

	last := newListPage([]string{"e"}, Window{Limit: 2, Offset: 4}, 5)
	assert.Nil(t, last.NextOffset)

	empty := newListPage[string](nil, Window{Limit: 2}, 0)
	assert.NotNil(t, empty.Items)
	assert.Nil(t, empty.NextOffset)
}
