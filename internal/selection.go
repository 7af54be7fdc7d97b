package internal

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ParseSelection turns "1,3-5" into zero-based indices, sorted and unique.
// Numbers are 1-based and must be within 1..n.
func ParseSelection(spec string, n int) ([]int, error) {
	seen := make(map[int]struct{})
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		from, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("bad selection %q: %w", part, err)
		}
		to := from
		if isRange {
			if to, err = strconv.Atoi(strings.TrimSpace(hi)); err != nil {
				return nil, fmt.Errorf("bad selection %q: %w", part, err)
			}
		}
		if from > to {
			from, to = to, from
		}
		if from < 1 || to > n {
			return nil, fmt.Errorf("%w: %q (have %d files)", ErrIndexOutOfRange, part, n)
		}
		for i := from; i <= to; i++ {
			seen[i-1] = struct{}{}
		}
	}
	out := make([]int, 0, len(seen))
	for i := range seen {
		out = append(out, i)
	}
	sort.Ints(out)
	return out, nil
}
