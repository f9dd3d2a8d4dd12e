package cli

import (
	"fmt"
	"io"

	"github.com/marcelocantos/weld/internal/filter"
)

// RunList lists available filters.
func RunList(reg *filter.Registry, w io.Writer) int {
	for _, b := range reg.All() {
		fmt.Fprintf(w, "%-10s %s\n", b.Name(), b.Description())
	}
	return 0
}
