package modules

import (
	"strconv"
	"strings"
)

// selectionGroup names a contiguous 1-based range of tests.
type selectionGroup struct {
	Name     string
	From, To int // inclusive
}

// parseSelection resolves "all", a group name or a comma-separated list of
// 1-based numbers into indexes. Anything that selects nothing means all,
// reported through fellBack.
func parseSelection(input string, total int, groups []selectionGroup) (idx []int, fellBack bool) {
	all := make([]int, total)
	for i := range all {
		all[i] = i + 1
	}

	in := strings.ToLower(strings.TrimSpace(input))
	if in == "all" {
		return all, false
	}
	for _, g := range groups {
		if strings.ToLower(g.Name) == in {
			var out []int
			for i := g.From; i <= g.To && i <= total; i++ {
				out = append(out, i)
			}
			return out, false
		}
	}

	var out []int
	for _, part := range strings.Split(in, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 1 || n > total {
			continue
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return all, true
	}
	return out, false
}
