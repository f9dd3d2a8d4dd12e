package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/marcelocantos/weld/internal/filter"
	"github.com/marcelocantos/weld/internal/pipeline"
)

// Unicode operators used in pipeline syntax.
// These are not shell metacharacters, so they survive unquoted in bash/zsh/fish.
const (
	OpPipe        = "¦" // U+00A6 BROKEN BAR — pipe (stdout → stdin)
	OpRedirectIn  = "‹" // U+2039 SINGLE LEFT-POINTING ANGLE QUOTATION MARK — redirect stdin from file
	OpRedirectOut = "›" // U+203A SINGLE RIGHT-POINTING ANGLE QUOTATION MARK — redirect stdout to file
)

// Parse takes pre-tokenized args (as delivered by the shell) and builds a
// command chain: one node per ¦-separated segment, each linked to the next
// through its stdout. ‹/› redirects map to file specs on the first
// segment's stdin and the last segment's stdout. Returns the chain members
// in pipeline order, root first.
func Parse(args []string) ([]*pipeline.Node, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("empty pipeline")
	}

	// First pass: extract redirects from the flat arg list.
	var redirectIn, redirectOut string
	filtered := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case OpRedirectIn:
			if i+1 >= len(args) {
				return nil, fmt.Errorf("%s requires a file path", OpRedirectIn)
			}
			if redirectIn != "" {
				return nil, fmt.Errorf("multiple %s redirects", OpRedirectIn)
			}
			i++
			redirectIn = args[i]
		case OpRedirectOut:
			if i+1 >= len(args) {
				return nil, fmt.Errorf("%s requires a file path", OpRedirectOut)
			}
			if redirectOut != "" {
				return nil, fmt.Errorf("multiple %s redirects", OpRedirectOut)
			}
			i++
			redirectOut = args[i]
		default:
			filtered = append(filtered, args[i])
		}
	}

	// Second pass: split on ¦ to get segments.
	var segments [][]string
	var current []string
	for _, arg := range filtered {
		if arg == OpPipe {
			if len(current) == 0 {
				return nil, fmt.Errorf("empty segment before %s", OpPipe)
			}
			segments = append(segments, current)
			current = nil
		} else {
			current = append(current, arg)
		}
	}
	if len(current) == 0 {
		return nil, fmt.Errorf("empty segment after %s", OpPipe)
	}
	segments = append(segments, current)

	nodes := make([]*pipeline.Node, len(segments))
	for i, seg := range segments {
		nodes[i] = pipeline.NewNode(seg[0], seg[1:]...)
	}
	for i := 0; i < len(nodes)-1; i++ {
		if err := nodes[i].SetPipeNode(pipeline.Stdout, nodes[i+1]); err != nil {
			return nil, err
		}
	}

	if redirectIn != "" {
		spec, err := pipeline.NewFile(redirectIn, pipeline.ModeRead)
		if err != nil {
			return nil, err
		}
		if err := nodes[0].SetPipe(pipeline.Stdin, spec); err != nil {
			return nil, err
		}
	}
	if redirectOut != "" {
		spec, err := pipeline.NewFile(redirectOut, pipeline.ModeWrite)
		if err != nil {
			return nil, err
		}
		if err := nodes[len(nodes)-1].SetPipe(pipeline.Stdout, spec); err != nil {
			return nil, err
		}
	}

	return nodes, nil
}

// FilterSpec is one parsed --filter argument: which segment and stream the
// stage attaches to, and how to build it.
type FilterSpec struct {
	Index      int // 1-based segment index; 0 = every segment
	Descriptor pipeline.Descriptor
	Name       string
	Args       []string
}

// ParseFilterSpec parses [INDEX:]STREAM:NAME[:ARG[,ARG...]], e.g.
// "stdout:upper", "2:stderr:prefix:err ", "stdout:replace:foo,bar".
func ParseFilterSpec(s string) (FilterSpec, error) {
	parts := strings.SplitN(s, ":", 4)

	var fs FilterSpec
	if n, err := strconv.Atoi(parts[0]); err == nil {
		if n < 1 {
			return FilterSpec{}, fmt.Errorf("filter spec %q: index must be >= 1", s)
		}
		fs.Index = n
		parts = parts[1:]
	}
	if len(parts) < 2 {
		return FilterSpec{}, fmt.Errorf("filter spec %q: want [INDEX:]STREAM:NAME[:ARGS]", s)
	}

	d, err := pipeline.ParseDescriptor(parts[0])
	if err != nil {
		return FilterSpec{}, fmt.Errorf("filter spec %q: %w", s, err)
	}
	fs.Descriptor = d
	fs.Name = parts[1]
	if len(parts) > 2 {
		fs.Args = strings.Split(strings.Join(parts[2:], ":"), ",")
	}
	return fs, nil
}

// ApplyFilter builds the stage named by fs and appends it to the targeted
// nodes' streams.
func ApplyFilter(nodes []*pipeline.Node, reg *filter.Registry, fs FilterSpec) error {
	b, err := reg.Lookup(fs.Name)
	if err != nil {
		return err
	}

	targets := nodes
	if fs.Index > 0 {
		if fs.Index > len(nodes) {
			return fmt.Errorf("filter %s: no segment %d in a %d-segment pipeline", fs.Name, fs.Index, len(nodes))
		}
		targets = nodes[fs.Index-1 : fs.Index]
	}
	for _, n := range targets {
		st, err := b.Build(fs.Args)
		if err != nil {
			return err
		}
		// Stages on a stdin stream run on the write side of the pipe.
		if fs.Descriptor == pipeline.Stdin {
			st = st.ForDirection(filter.Write)
		}
		n.AppendFilter(fs.Descriptor, st)
	}
	return nil
}
