package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPagination(t *testing.T) {
	r := httptest.NewRequest("POST", "/budget/cycles?page=3&limit=20", nil)
	p, err := ExtractPagination(r)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Page)
	assert.Equal(t, 20, p.Limit)
	assert.Equal(t, 40, p.Offset)

	r = httptest.NewRequest("POST", "/budget/cycles", nil)
	p, err = ExtractPagination(r)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 50, p.Limit)
	assert.Equal(t, 0, p.Offset)

	r = httptest.NewRequest("POST", "/budget/cycles?page=0", nil)
	_, err = ExtractPagination(r)
	assert.Error(t, err)

	r = httptest.NewRequest("POST", "/budget/cycles?limit=abc", nil)
	_, err = ExtractPagination(r)
	assert.Error(t, err)
}

func TestSetPaginationStats(t *testing.T) {
	p := PaginationParams{Page: 1, Limit: 20}
	p.SetPaginationStats(45)
	assert.Equal(t, 45, p.TotalRecords)
	assert.Equal(t, 3, p.TotalPages)

	p.SetPaginationStats(0)
	assert.Equal(t, 0, p.TotalPages)
}
