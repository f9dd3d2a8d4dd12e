package pipeline

import (
	"fmt"
	"os"
)

// Descriptor names one of a process's three standard streams.
type Descriptor int

const (
	Stdin Descriptor = iota
	Stdout
	Stderr
)

func (d Descriptor) String() string {
	switch d {
	case Stdin:
		return "stdin"
	case Stdout:
		return "stdout"
	case Stderr:
		return "stderr"
	default:
		return fmt.Sprintf("descriptor(%d)", int(d))
	}
}

// ParseDescriptor converts a string to a Descriptor.
func ParseDescriptor(s string) (Descriptor, error) {
	switch s {
	case "stdin":
		return Stdin, nil
	case "stdout":
		return Stdout, nil
	case "stderr":
		return Stderr, nil
	default:
		return 0, fmt.Errorf("unknown descriptor: %q", s)
	}
}

// Mode says which way bytes flow through a pipe or file spec, from the
// child's point of view: a read-mode spec feeds the child, a write-mode
// spec receives from it.
type Mode int

const (
	ModeRead Mode = iota
	ModeWrite
)

func (m Mode) String() string {
	switch m {
	case ModeRead:
		return "read"
	case ModeWrite:
		return "write"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Kind tags the variant of a descriptor spec.
type Kind int

const (
	// KindInherit connects the stream to the parent's own stream.
	KindInherit Kind = iota
	// KindPipe connects the stream to an anonymous pipe drained or fed by
	// the pump.
	KindPipe
	// KindFile connects the stream to a file opened at spawn time.
	KindFile
	// KindHandle connects the stream to a caller-supplied open OS handle.
	KindHandle
	// KindChain connects an output stream to a peer node's stdin.
	KindChain
)

// Spec describes what a process's standard stream connects to. Specs are
// validated at construction, not at spawn.
type Spec struct {
	kind   Kind
	path   string
	mode   Mode
	handle *os.File
	peer   *Node
}

// Inherit returns a spec connecting the stream to the parent's own stream.
func Inherit() Spec {
	return Spec{kind: KindInherit}
}

// NewPipe returns an anonymous-pipe spec. Mode must be ModeRead or
// ModeWrite.
func NewPipe(mode Mode) (Spec, error) {
	if mode != ModeRead && mode != ModeWrite {
		return Spec{}, fmt.Errorf("pipe spec: bad mode %d: %w", int(mode), ErrInvalidSpec)
	}
	return Spec{kind: KindPipe, mode: mode}, nil
}

// NewFile returns a spec connecting the stream to the named file, opened at
// spawn time.
func NewFile(path string, mode Mode) (Spec, error) {
	if path == "" {
		return Spec{}, fmt.Errorf("file spec: empty path: %w", ErrInvalidSpec)
	}
	if mode != ModeRead && mode != ModeWrite {
		return Spec{}, fmt.Errorf("file spec %s: bad mode %d: %w", path, int(mode), ErrInvalidSpec)
	}
	return Spec{kind: KindFile, path: path, mode: mode}, nil
}

// NewHandle returns a spec connecting the stream to an already-open OS
// handle. The caller retains ownership of the handle.
func NewHandle(f *os.File) (Spec, error) {
	if f == nil {
		return Spec{}, fmt.Errorf("handle spec: nil handle: %w", ErrInvalidSpec)
	}
	return Spec{kind: KindHandle, handle: f}, nil
}

// Kind returns the spec's variant tag.
func (s Spec) Kind() Kind { return s.kind }

// Peer returns the chained peer node, or nil for non-chain specs.
func (s Spec) Peer() *Node { return s.peer }
