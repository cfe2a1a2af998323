package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		name             string
		page, size       int
		wantOff, wantLim int
	}{
		{name: "first page", page: 1, size: 10, wantOff: 0, wantLim: 10},
		{name: "third page", page: 3, size: 10, wantOff: 20, wantLim: 10},
		{name: "page below one", page: 0, size: 5, wantOff: 0, wantLim: 5},
		{name: "default size", page: 2, size: 0, wantOff: DefaultPageSize, wantLim: DefaultPageSize},
		{name: "size capped", page: 1, size: 1000, wantOff: 0, wantLim: MaxPageSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			off, lim := Calculate(tt.page, tt.size)
			assert.Equal(t, tt.wantOff, off)
			assert.Equal(t, tt.wantLim, lim)
		})
	}
}

func TestParseIntDefault(t *testing.T) {
	assert.Equal(t, 7, ParseIntDefault("", 7))
	assert.Equal(t, 7, ParseIntDefault("abc", 7))
	assert.Equal(t, 3, ParseIntDefault("3", 7))
}

func TestParseID(t *testing.T) {
	id, ok := ParseID("42")
	assert.True(t, ok)
	assert.Equal(t, uint(42), id)

	for _, s := range []string{"", "0", "-1", "abc"} {
		_, ok := ParseID(s)
		assert.False(t, ok, s)
	}
}
