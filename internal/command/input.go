package command

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/phrazzld/chunkgen/internal/selection"
	"github.com/phrazzld/chunkgen/internal/task"
)

// Suffixes understood by ParseSuffixed.
const (
	// SuffixThousand multiplies by 1000
	SuffixThousand = 'k'

	// SuffixCell multiplies by the number of blocks in a cell
	SuffixCell = 'c'
)

// ParseInteger parses a base 10 integer.
func ParseInteger(s string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", task.ErrInvalidParameter, s)
	}
	return n, nil
}

// ParseSuffixed parses an integer with an optional unit suffix: "2k" is
// 2000 and "10c" is ten cells worth of blocks.
func ParseSuffixed(s string) (int64, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, fmt.Errorf("%w: empty value", task.ErrInvalidParameter)
	}

	digits := s
	multiplier := int64(1)
	switch s[len(s)-1] {
	case SuffixThousand:
		multiplier = 1000
		digits = s[:len(s)-1]
	case SuffixCell:
		multiplier = 1 << selection.CellShift
		digits = s[:len(s)-1]
	}

	n, err := ParseInteger(digits)
	if err != nil {
		return 0, err
	}
	if n > math.MaxInt64/multiplier || n < math.MinInt64/multiplier {
		return 0, fmt.Errorf("%w: %q is out of range", task.ErrInvalidParameter, s)
	}
	return n * multiplier, nil
}

// parseInt parses a value that must fit in an int.
func parseInt(s string) (int, error) {
	n, err := ParseInteger(s)
	if err != nil {
		return 0, err
	}
	if int64(int(n)) != n {
		return 0, fmt.Errorf("%w: %q is out of range", task.ErrInvalidParameter, s)
	}
	return int(n), nil
}
