package cmd

import (
	"fmt"
	"strings"
)

// parseWhere converts col=value flags into equality filters.
func parseWhere(where []string) (map[string]any, error) {
	if len(where) == 0 {
		return nil, nil
	}
	res := make(map[string]any, len(where))
	for _, v := range where {
		col, val, ok := strings.Cut(v, "=")
		col = strings.TrimSpace(col)
		if !ok || col == "" {
			return nil, fmt.Errorf("filter %q is not in col=value form", v)
		}
		res[col] = val
	}
	return res, nil
}
