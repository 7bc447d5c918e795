package cmdutil

import (
	"fmt"
	"io"

	"github.com/ambrevar/hsync/internal/setengine"
)

// PrintGroups renders a set-engine group query's result, one group per
// blank-line-separated block, honoring the output-mode path projection
// (spec §4.4): "file" prints one path per member, "links" prints every
// path of every member, "all-links" groups each member's full path set
// under its own line.
func PrintGroups(w io.Writer, groups []setengine.Group, linkMode string) (int, error) {
	for i, g := range groups {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return i, err
			}
		}
		for _, m := range g.Members {
			switch linkMode {
			case "all-links":
				if _, err := fmt.Fprintf(w, "%s [%s]\n", m.Entry.MinPath(), joinPaths(m.Entry.SortedPaths())); err != nil {
					return i, err
				}
			default:
				for _, p := range OutputPaths(m.Entry, linkMode) {
					if _, err := fmt.Fprintln(w, p); err != nil {
						return i, err
					}
				}
			}
		}
	}
	return len(groups), nil
}

func joinPaths(paths []string) string {
	out := ""
	for i, p := range paths {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}
