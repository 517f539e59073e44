package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPageInfo_Window(t *testing.T) {
	// Окно: 5 страниц до текущей и 4 после, в пределах [1, TotalPages].
	tests := []struct {
		name       string
		page       int
		totalCount int64
		wantPage   int
		wantTotal  int
		wantStart  int
		wantEnd    int
	}{
		{"single page", 1, 5, 1, 1, 1, 1},
		{"empty list", 1, 0, 1, 1, 1, 1},
		{"middle of long list", 7, 200, 7, 20, 2, 11},
		{"first page of long list", 1, 200, 1, 20, 1, 5},
		{"last page of long list", 20, 200, 20, 20, 15, 20},
		{"page clamped to total", 99, 30, 3, 3, 1, 3},
		{"zero page treated as first", 0, 30, 1, 3, 1, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := NewPageInfo(tt.page, tt.totalCount, DefaultPageSize)
			assert.Equal(t, tt.wantPage, info.CurrentPage)
			assert.Equal(t, tt.wantTotal, info.TotalPages)
			assert.Equal(t, tt.wantStart, info.StartRange)
			assert.Equal(t, tt.wantEnd, info.EndRange)
			assert.Equal(t, tt.totalCount, info.TotalCount)
		})
	}
}

func TestPageInfo_Offset(t *testing.T) {
	info := NewPageInfo(3, 100, DefaultPageSize)
	assert.Equal(t, 20, info.Offset(DefaultPageSize))
}
