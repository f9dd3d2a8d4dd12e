package filter

// Direction says which side of a stream a stage operates on: Read stages
// run on bytes drained from a child's stdout/stderr; Write stages run on
// bytes headed into a child's stdin.
type Direction int

const (
	Read Direction = iota
	Write
)

func (d Direction) String() string {
	switch d {
	case Read:
		return "read"
	case Write:
		return "write"
	default:
		return "direction(?)"
	}
}

// Granularity controls how input is delivered to a transform.
type Granularity int

const (
	// Chunk delivers exactly the bytes most recently read, in arrival order.
	Chunk Granularity = iota
	// Line buffers partial input and delivers one complete \n-terminated
	// line per call. A trailing partial line is delivered once at close.
	Line
)

func (g Granularity) String() string {
	switch g {
	case Chunk:
		return "chunk"
	case Line:
		return "line"
	default:
		return "granularity(?)"
	}
}

// Transform rewrites a chunk or line of stream data. Returning an error
// aborts the stream's remaining processing.
type Transform func(data []byte) ([]byte, error)

// Flush produces a stage's final output when the stream closes.
type Flush func() []byte

// Stage is one transform step in a stream's filter pipeline. A stage is a
// template: it carries no handle or buffer state of its own, and binds to a
// real OS handle only at spawn time, when the scheduler builds a Chain from
// the node's stages.
type Stage struct {
	name        string
	direction   Direction
	granularity Granularity
	transform   Transform
	flush       Flush
	hasFlush    bool
}

// Option configures optional stage behavior.
type Option func(*Stage)

// WithFlush marks the stage as supporting a close notification. fn is
// invoked exactly once, when the stream closes. Support is an explicit
// capability declared at construction, never inferred.
func WithFlush(fn Flush) Option {
	return func(s *Stage) {
		s.flush = fn
		s.hasFlush = true
	}
}

// New creates a stage. The transform runs once per chunk or per complete
// line, depending on granularity.
func New(name string, dir Direction, gran Granularity, fn Transform, opts ...Option) *Stage {
	s := &Stage{
		name:        name,
		direction:   dir,
		granularity: gran,
		transform:   fn,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ForDirection returns a copy of the stage bound to dir. Builders produce
// Read stages; a stage attached to a stdin stream runs on the Write side,
// so it must be re-tagged or a bound chain will skip it.
func (s *Stage) ForDirection(dir Direction) *Stage {
	c := *s
	c.direction = dir
	return &c
}

// Name returns the stage identifier used in errors and listings.
func (s *Stage) Name() string { return s.name }

// Direction returns which side of a stream the stage operates on.
func (s *Stage) Direction() Direction { return s.direction }

// Granularity returns how input is delivered to the transform.
func (s *Stage) Granularity() Granularity { return s.granularity }
