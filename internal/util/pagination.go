package util

import (
	"math"
	"strconv"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Calculate turns a 1-based page and a page size into an offset and limit.
func Calculate(page, size int) (from, limit int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > MaxPageSize {
		size = DefaultPageSize
	}
	if page > math.MaxInt/size {
		page = math.MaxInt / size
	}
	from = (page - 1) * size
	return from, size
}

// ParseIntDefault parses s, falling back to def on empty or malformed input.
func ParseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// Pages is the number of pages needed to show total items.
func Pages(total int64, size int) int {
	if size <= 0 || total <= 0 {
		return 1
	}
	return int((total + int64(size) - 1) / int64(size))
}
