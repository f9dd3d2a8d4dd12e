package pipeline

import (
	"context"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/marcelocantos/weld/internal/filter"
)

const (
	// DefaultReadBuffer is the per-pump read buffer size.
	DefaultReadBuffer = 32 * 1024

	// DefaultPollInterval is how long the scheduler sleeps after a tick in
	// which no pump made progress.
	DefaultPollInterval = 2 * time.Millisecond
)

// Scheduler spawns every member of a chain and advances their pumps
// cooperatively, one step each per tick, until all reach completion. The
// relative interleaving of different pumps' steps is unspecified; what is
// guaranteed is that every active pump gets a step on every tick, so one
// slow stage cannot starve another's draining.
type Scheduler struct {
	logger  *zap.Logger
	poll    time.Duration
	bufSize int
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger for pump and scheduler events.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithPollInterval sets the idle-tick sleep.
func WithPollInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.poll = d }
}

// WithReadBuffer sets the per-pump read buffer size.
func WithReadBuffer(n int) Option {
	return func(s *Scheduler) { s.bufSize = n }
}

// NewScheduler creates a scheduler with the given options.
func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{
		logger:  zap.NewNop(),
		poll:    DefaultPollInterval,
		bufSize: DefaultReadBuffer,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// pipeInput is the write side of a chained node's stdin. Both of an
// upstream's output streams may feed the same peer, so the write end closes
// only when the last feeding stream does. Write-direction stages on the
// peer's stdin run here, sharing one bound chain so interleaved writes
// reassemble lines correctly.
//
// The write end is non-blocking: a peer that has stopped reading must not
// stall the scheduling tick, or the loop would never drain the peer's own
// output and the chain would deadlock. Bytes the peer can't take yet sit in
// pending and are retried every tick.
type pipeInput struct {
	w       *os.File
	fd      int
	chain   *filter.Chain
	refs    int
	pending []byte
	broken  bool
	eof     bool
	closed  bool
	prog    string
	logger  *zap.Logger
}

func (pi *pipeInput) Write(data []byte) (int, error) {
	if pi.broken {
		return len(data), nil
	}
	out, err := pi.chain.Process(data)
	if err != nil {
		pi.logger.Error("filter failure",
			zap.String("stdin_of", pi.prog), zap.Error(err))
		pi.broken = true
		pi.pending = nil
		return len(data), nil
	}
	pi.pending = append(pi.pending, out...)
	pi.flush()
	return len(data), nil
}

// flush pushes pending bytes into the peer's stdin without blocking.
// Reports whether any byte moved. Once every feeding stream has released
// and the buffer is empty, the write end closes so the peer sees
// end-of-stream.
func (pi *pipeInput) flush() bool {
	progressed := false
	for len(pi.pending) > 0 && !pi.broken {
		n, err := unix.Write(pi.fd, pi.pending)
		if n > 0 {
			pi.pending = pi.pending[n:]
			progressed = true
		}
		if err == unix.EAGAIN || err == unix.EINTR {
			break
		}
		if err != nil {
			// Peer went away. Keep draining the upstream, discard.
			pi.broken = true
			pi.pending = nil
		}
	}
	if pi.eof && len(pi.pending) == 0 && !pi.closed {
		pi.w.Close()
		pi.closed = true
		progressed = true
	}
	return progressed
}

// release drops one feeding stream. The last release runs the stdin filter
// chain's close and marks end-of-stream; the write end closes as soon as
// pending drains.
func (pi *pipeInput) release() {
	pi.refs--
	if pi.refs > 0 {
		return
	}
	if !pi.broken {
		tail, err := pi.chain.Close()
		if err != nil {
			pi.logger.Error("filter failure at close",
				zap.String("stdin_of", pi.prog), zap.Error(err))
			pi.broken = true
			pi.pending = nil
		} else {
			pi.pending = append(pi.pending, tail...)
		}
	}
	pi.eof = true
	pi.flush()
}

// Run computes root's chain, spawns every member, and drives all pumps to
// completion. stdin feeds the root node (when its spec doesn't say
// otherwise); stdout and stderr receive terminal pipe output. Per-node exit
// codes are read from the nodes afterwards.
//
// A spawn failure for any member aborts the whole chain: a downstream or
// upstream node cannot usefully run alone. Cancellation finishes every
// still-active pump through its normal close path, so no pipe handle stays
// open and no child is left unreaped. There is no internal liveness
// timeout; a caller that needs one bounds ctx.
func (s *Scheduler) Run(ctx context.Context, root *Node, stdin io.Reader, stdout, stderr io.Writer) error {
	nodes := root.Chain()

	// One stdin pipe per chain target, created before any spawn so the
	// wiring exists when the upstream launches.
	inputs := make(map[*Node]*pipeInput)
	readEnds := make(map[*Node]*os.File)
	abort := func() {
		for _, f := range readEnds {
			f.Close()
		}
		for _, pi := range inputs {
			pi.w.Close()
		}
	}

	for _, n := range nodes {
		for _, d := range []Descriptor{Stdout, Stderr} {
			sp := n.descriptors[d]
			if sp.kind != KindChain {
				continue
			}
			pi, ok := inputs[sp.peer]
			if !ok {
				r, w, err := os.Pipe()
				if err != nil {
					abort()
					return err
				}
				fd := int(w.Fd())
				if err := unix.SetNonblock(fd, true); err != nil {
					s.logger.Warn("set nonblock failed",
						zap.String("stdin_of", sp.peer.program), zap.Error(err))
				}
				pi = &pipeInput{
					w:      w,
					fd:     fd,
					chain:  filter.NewChain(sp.peer.Stages(Stdin), filter.Write),
					prog:   sp.peer.program,
					logger: s.logger,
				}
				inputs[sp.peer] = pi
				readEnds[sp.peer] = r
			}
			pi.refs++
		}
	}

	pumps := make([]*Pump, 0, len(nodes))
	for _, n := range nodes {
		var nio nodeIO
		if f, ok := readEnds[n]; ok {
			nio.stdinFile = f
			delete(readEnds, n) // spawn closes the parent copy
		} else if n == root {
			nio.stdinReader = stdin
		}

		wire := func(d Descriptor, terminal io.Writer) (io.Writer, func()) {
			if sp := n.descriptors[d]; sp.kind == KindChain {
				pi := inputs[sp.peer]
				return pi, pi.release
			}
			return terminal, nil
		}
		nio.stdoutSink, nio.stdoutClose = wire(Stdout, stdout)
		nio.stderrSink, nio.stderrClose = wire(Stderr, stderr)

		p := newPump(n, s.logger, s.bufSize)
		if err := p.spawn(nio); err != nil {
			s.logger.Error("spawn failed, aborting chain",
				zap.String("program", n.program), zap.Error(err))
			for _, q := range pumps {
				q.Finish()
			}
			abort()
			return err
		}
		pumps = append(pumps, p)
	}

	active := pumps
	for len(active) > 0 {
		select {
		case <-ctx.Done():
			s.logger.Info("cancelled, finishing pumps",
				zap.Int("active", len(active)))
			for _, p := range active {
				p.Finish()
			}
			for _, pi := range inputs {
				if !pi.closed {
					pi.w.Close()
					pi.closed = true
				}
			}
			return ctx.Err()
		default:
		}

		progressed := false
		next := active[:0]
		for _, p := range active {
			a, prog := p.Step()
			progressed = progressed || prog
			if a {
				next = append(next, p)
			}
		}
		active = next

		// Retry stdin writes a full peer refused earlier in the tick.
		for _, pi := range inputs {
			if !pi.closed {
				progressed = pi.flush() || progressed
			}
		}

		if !progressed && len(active) > 0 {
			time.Sleep(s.poll)
		}
	}
	return nil
}
