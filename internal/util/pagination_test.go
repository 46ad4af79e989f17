package util

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		page, size      int
		wantFrom, wantN int
	}{
		{1, 10, 0, 10},
		{3, 10, 20, 10},
		{0, 10, 0, 10},
		{-4, 5, 0, 5},
		{2, 0, DefaultPageSize, DefaultPageSize},
		{1, 1000, 0, DefaultPageSize},
		{math.MaxInt, 10, (math.MaxInt/10 - 1) * 10, 10},
	}
	for _, tt := range tests {
		from, n := Calculate(tt.page, tt.size)
		assert.Equal(t, tt.wantFrom, from, "page=%d size=%d", tt.page, tt.size)
		assert.Equal(t, tt.wantN, n, "page=%d size=%d", tt.page, tt.size)
	}
}

func TestCalculate_HugePageNeverNegative(t *testing.T) {
	from, _ := Calculate(ParseIntDefault("9223372036854775807", 1), DefaultPageSize)
	assert.GreaterOrEqual(t, from, 0)
}

func TestParseIntDefault(t *testing.T) {
	assert.Equal(t, 7, ParseIntDefault("", 7))
	assert.Equal(t, 7, ParseIntDefault("x1", 7))
	assert.Equal(t, 42, ParseIntDefault("42", 7))
}

func TestPages(t *testing.T) {
	assert.Equal(t, 1, Pages(0, 20))
	assert.Equal(t, 1, Pages(20, 20))
	assert.Equal(t, 2, Pages(21, 20))
	assert.Equal(t, 1, Pages(5, 0))
}
