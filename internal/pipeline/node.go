package pipeline

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/marcelocantos/weld/internal/filter"
)

type stageEntry struct {
	id    string
	stage *filter.Stage
}

// Node is one process definition in a chain: program, arguments, working
// directory, environment, one descriptor spec per standard stream, and the
// filter stages attached to each stream. Nodes are mutated only before
// spawn; the pump records pid and exit status during execution, each
// exactly once. A chain link holds a non-owning reference to its peer.
type Node struct {
	program     string
	args        []string
	cwd         string
	env         map[string]string
	descriptors map[Descriptor]Spec
	filters     map[Descriptor][]stageEntry

	pid     int
	pidSet  bool
	exit    int
	exitSet bool
}

// NewNode creates a node for the given program. By default stdin is
// inherited and stdout/stderr are anonymous pipes drained by the pump.
func NewNode(program string, args ...string) *Node {
	return &Node{
		program: program,
		args:    args,
		descriptors: map[Descriptor]Spec{
			Stdin:  {kind: KindInherit},
			Stdout: {kind: KindPipe, mode: ModeWrite},
			Stderr: {kind: KindPipe, mode: ModeWrite},
		},
		filters: make(map[Descriptor][]stageEntry),
	}
}

// SetCwd sets the working directory the process runs in. Empty means
// inherit the caller's.
func (n *Node) SetCwd(dir string) {
	n.cwd = dir
}

// SetEnv sets environment variables. When merge is true, entries are
// layered onto the node's current environment — the caller's own when the
// node still inherits it, so a merge adds to what the child would have
// gotten anyway. Otherwise they replace it outright. A nil environment
// means inherit the caller's.
func (n *Node) SetEnv(env map[string]string, merge bool) {
	switch {
	case !merge:
		n.env = make(map[string]string, len(env))
	case n.env == nil:
		n.env = make(map[string]string)
		for _, kv := range os.Environ() {
			if k, v, ok := strings.Cut(kv, "="); ok {
				n.env[k] = v
			}
		}
	}
	for k, v := range env {
		n.env[k] = v
	}
}

// SetArgs sets the argument list. When merge is true, args are appended to
// the existing list; otherwise they replace it.
func (n *Node) SetArgs(args []string, merge bool) {
	if merge {
		n.args = append(n.args, args...)
		return
	}
	n.args = append([]string(nil), args...)
}

// SetPipe connects descriptor d to the given spec.
func (n *Node) SetPipe(d Descriptor, spec Spec) error {
	if spec.kind == KindChain {
		return n.SetPipeNode(d, spec.peer)
	}
	n.descriptors[d] = spec
	return nil
}

// SetPipeNode links peer as the downstream consumer of descriptor d: the
// filtered bytes drained from d are written into peer's stdin. Chaining
// may only originate from an output descriptor, and may not introduce a
// cycle. On error the descriptor table is left unchanged.
func (n *Node) SetPipeNode(d Descriptor, peer *Node) error {
	if d == Stdin {
		return ErrChainNotAllowedOnInput
	}
	if peer == nil {
		return fmt.Errorf("chain spec: nil peer: %w", ErrInvalidSpec)
	}
	for _, m := range peer.Chain() {
		if m == n {
			return fmt.Errorf("chain link %s -> %s is cyclic: %w", n.program, peer.program, ErrInvalidSpec)
		}
	}
	n.descriptors[d] = Spec{kind: KindChain, peer: peer}
	return nil
}

// Descriptor returns the spec currently attached to d.
func (n *Node) Descriptor(d Descriptor) Spec {
	return n.descriptors[d]
}

// AppendFilter adds a stage after any previously added stages for d and
// returns a stable identifier usable with RemoveFilter.
func (n *Node) AppendFilter(d Descriptor, st *filter.Stage) string {
	id := uuid.NewString()
	n.filters[d] = append(n.filters[d], stageEntry{id: id, stage: st})
	return id
}

// PrependFilter adds a stage before any previously added stages for d and
// returns a stable identifier usable with RemoveFilter.
func (n *Node) PrependFilter(d Descriptor, st *filter.Stage) string {
	id := uuid.NewString()
	n.filters[d] = append([]stageEntry{{id: id, stage: st}}, n.filters[d]...)
	return id
}

// RemoveFilter removes the stage previously added under id.
func (n *Node) RemoveFilter(d Descriptor, id string) error {
	entries := n.filters[d]
	for i, e := range entries {
		if e.id == id {
			n.filters[d] = append(entries[:i], entries[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("remove filter %s on %s: %w", id, d, ErrUnknownFilter)
}

// Stages returns the ordered stage sequence for d.
func (n *Node) Stages(d Descriptor) []*filter.Stage {
	entries := n.filters[d]
	stages := make([]*filter.Stage, len(entries))
	for i, e := range entries {
		stages[i] = e.stage
	}
	return stages
}

// Chain returns this node plus every node reachable through output chain
// links, in link-discovery order, root first, with no duplicates. The
// chain is computed on demand; the graph is immutable once construction is
// finished, by convention.
func (n *Node) Chain() []*Node {
	var out []*Node
	seen := make(map[*Node]bool)
	var walk func(*Node)
	walk = func(m *Node) {
		if seen[m] {
			return
		}
		seen[m] = true
		out = append(out, m)
		for _, d := range []Descriptor{Stdout, Stderr} {
			if sp := m.descriptors[d]; sp.kind == KindChain {
				walk(sp.peer)
			}
		}
	}
	walk(n)
	return out
}

// Program returns the program name.
func (n *Node) Program() string { return n.program }

// Args returns the argument list.
func (n *Node) Args() []string { return n.args }

// Cwd returns the working directory, empty meaning inherited.
func (n *Node) Cwd() string { return n.cwd }

// Env returns the environment mapping, nil meaning inherited.
func (n *Node) Env() map[string]string { return n.env }

// PID returns the spawned process ID, or false if not yet spawned.
func (n *Node) PID() (int, bool) {
	return n.pid, n.pidSet
}

// ExitCode returns the captured exit status, or false if not yet available.
// The status is written exactly once, when the pump reaps the process, and
// is stable thereafter.
func (n *Node) ExitCode() (int, bool) {
	return n.exit, n.exitSet
}

func (n *Node) recordPID(pid int) {
	if !n.pidSet {
		n.pid = pid
		n.pidSet = true
	}
}

func (n *Node) recordExit(code int) {
	if !n.exitSet {
		n.exit = code
		n.exitSet = true
	}
}
