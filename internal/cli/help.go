package cli

import (
	"fmt"
	"io"
)

// RunHelp shows general usage.
func RunHelp(w io.Writer) int {
	fmt.Fprintln(w, "weld — run process pipelines with stream filters")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "usage:")
	fmt.Fprintf(w, "  weld <cmd> [args...] %s <cmd> ...   run a pipeline\n", OpPipe)
	fmt.Fprintln(w, "  weld --filter SPEC <cmd> ...        attach a filter stage")
	fmt.Fprintln(w, "  weld --list                         list available filters")
	fmt.Fprintln(w, "  weld --audit <verify|show|tail>     audit log operations")
	fmt.Fprintln(w, "  weld --help                         show help")
	fmt.Fprintln(w, "  weld --version                      show version")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "pipeline operators:")
	fmt.Fprintf(w, "  %s  pipe (stdout → stdin)\n", OpPipe)
	fmt.Fprintf(w, "  %s  redirect stdout to file\n", OpRedirectOut)
	fmt.Fprintf(w, "  %s  redirect stdin from file\n", OpRedirectIn)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "filter specs: [INDEX:]STREAM:NAME[:ARG[,ARG...]]")
	fmt.Fprintln(w, "  e.g. stdout:upper    2:stderr:prefix:err     stdout:script:my.star")
	return 0
}
