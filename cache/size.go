package cache

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// CacheSize is the count limit of a memory tier.
type CacheSize int

const (
	Small      CacheSize = 10
	Medium     CacheSize = 100
	Large      CacheSize = 1000
	ExtraLarge CacheSize = 10000
)

// Custom returns a CacheSize of exactly n entries.
func Custom(n int) CacheSize {
	return CacheSize(n)
}

// Capacity returns the count limit as an int.
func (s CacheSize) Capacity() int {
	return int(s)
}

func (s CacheSize) String() string {
	switch s {
	case Small:
		return "small"
	case Medium:
		return "medium"
	case Large:
		return "large"
	case ExtraLarge:
		return "extra-large"
	}
	return strconv.Itoa(int(s))
}

// ParseCacheSize accepts a preset name (small, medium, large, extra-large)
// or a positive integer.
func ParseCacheSize(s string) (CacheSize, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "small":
		return Small, nil
	case "medium", "":
		return Medium, nil
	case "large":
		return Large, nil
	case "extra-large", "extralarge", "extra_large":
		return ExtraLarge, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 0, errors.Newf("cache: invalid cache size %q", s)
	}
	return Custom(n), nil
}
