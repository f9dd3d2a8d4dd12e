package pipeline

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/marcelocantos/weld/internal/filter"
)

type pumpState int

const (
	stateCreated pumpState = iota
	stateSpawned
	statePumping
	stateDrained
	stateClosed
	stateFailed
)

// stream is the pump-side view of one drained output descriptor: the read
// end of the pipe, the bound filter chain, and the downstream write/close
// callbacks.
type stream struct {
	desc    Descriptor
	file    *os.File
	fd      int
	chain   *filter.Chain
	sink    io.Writer
	onClose func()
	drained bool
}

func (s *stream) done() bool { return s == nil || s.drained }

type waitResult struct {
	code int
}

// nodeIO carries the wiring the scheduler resolves for one node before
// spawn: where its stdin comes from and where its drained output goes.
type nodeIO struct {
	stdinFile   *os.File  // child-held pipe/file end; closed in the parent after spawn
	stdinReader io.Reader // caller-owned stream, used when stdinFile is nil
	stdoutSink  io.Writer
	stdoutClose func()
	stderrSink  io.Writer
	stderrClose func()
}

// Pump drives exactly one spawned process from launch to reap. It owns the
// read side of the process's piped output descriptors; only the pump ever
// reads them, and only its write callbacks ever write to a chained peer's
// stdin, so no handle is touched from two places.
type Pump struct {
	node   *Node
	cmd    *exec.Cmd
	state  pumpState
	stdout *stream
	stderr *stream
	waitCh chan waitResult
	buf    []byte
	logger *zap.Logger
}

func newPump(n *Node, logger *zap.Logger, bufSize int) *Pump {
	return &Pump{
		node:   n,
		state:  stateCreated,
		buf:    make([]byte, bufSize),
		waitCh: make(chan waitResult, 1),
		logger: logger,
	}
}

// spawn resolves the node's descriptor specs to real OS handles and starts
// the process. A spawn failure is fatal and not retried: process creation
// is not idempotent.
func (p *Pump) spawn(nio nodeIO) error {
	n := p.node

	prog, err := exec.LookPath(n.program)
	if err != nil {
		p.state = stateFailed
		return &SpawnError{Program: n.program, Err: err}
	}

	cmd := exec.Command(prog, n.args...)
	cmd.Dir = n.cwd
	if n.env != nil {
		env := make([]string, 0, len(n.env))
		for k, v := range n.env {
			env = append(env, k+"="+v)
		}
		cmd.Env = env
	}

	// Parent-side copies of child-held ends, closed once the child holds
	// its own dup.
	var childEnds []*os.File
	var opened []*os.File

	fail := func(err error) error {
		for _, f := range childEnds {
			f.Close()
		}
		for _, f := range opened {
			f.Close()
		}
		p.state = stateFailed
		return &SpawnError{Program: n.program, Err: err}
	}

	// Stdin.
	if nio.stdinFile != nil {
		cmd.Stdin = nio.stdinFile
		childEnds = append(childEnds, nio.stdinFile)
	} else {
		switch spec := n.descriptors[Stdin]; spec.kind {
		case KindInherit, KindPipe:
			cmd.Stdin = nio.stdinReader
		case KindFile:
			f, err := os.Open(spec.path)
			if err != nil {
				return fail(err)
			}
			cmd.Stdin = f
			childEnds = append(childEnds, f)
		case KindHandle:
			cmd.Stdin = spec.handle
		}
	}

	// Stdout and stderr.
	mkOut := func(d Descriptor, inherited *os.File, sink io.Writer, onClose func()) (io.Writer, *stream, error) {
		switch spec := n.descriptors[d]; spec.kind {
		case KindInherit:
			return inherited, nil, nil
		case KindHandle:
			return spec.handle, nil, nil
		case KindFile:
			f, err := os.OpenFile(spec.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
			if err != nil {
				return nil, nil, err
			}
			childEnds = append(childEnds, f)
			return f, nil, nil
		case KindPipe, KindChain:
			r, w, err := os.Pipe()
			if err != nil {
				return nil, nil, err
			}
			childEnds = append(childEnds, w)
			opened = append(opened, r)
			return w, &stream{desc: d, file: r, sink: sink, onClose: onClose}, nil
		default:
			return nil, nil, fmt.Errorf("descriptor %s: unsupported spec kind", d)
		}
	}

	outW, outS, err := mkOut(Stdout, os.Stdout, nio.stdoutSink, nio.stdoutClose)
	if err != nil {
		return fail(err)
	}
	errW, errS, err := mkOut(Stderr, os.Stderr, nio.stderrSink, nio.stderrClose)
	if err != nil {
		return fail(err)
	}
	cmd.Stdout = outW
	cmd.Stderr = errW

	if err := cmd.Start(); err != nil {
		return fail(err)
	}
	for _, f := range childEnds {
		f.Close()
	}

	p.cmd = cmd
	p.stdout = outS
	p.stderr = errS
	n.recordPID(cmd.Process.Pid)
	p.state = stateSpawned

	go func() {
		err := cmd.Wait()
		code := 0
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				code = exitErr.ExitCode()
			} else {
				code = -1
			}
		}
		p.waitCh <- waitResult{code: code}
	}()

	p.logger.Debug("spawned",
		zap.String("program", n.program),
		zap.Int("pid", cmd.Process.Pid))
	return nil
}

// bind attaches every configured filter stage to its now-real handle and
// puts the readable ends into non-blocking mode. Deferred to after spawn
// because the handles don't exist earlier.
func (p *Pump) bind() {
	for _, s := range []*stream{p.stdout, p.stderr} {
		if s == nil {
			continue
		}
		s.chain = filter.NewChain(p.node.Stages(s.desc), filter.Read)
		fd := int(s.file.Fd())
		if err := unix.SetNonblock(fd, true); err != nil {
			p.logger.Warn("set nonblock failed",
				zap.Stringer("descriptor", s.desc), zap.Error(err))
		}
		s.fd = fd
	}
}

// Step advances the pump one tick. It returns whether the pump is still
// active and whether the tick made progress (so the scheduler can back off
// when every pump is idle).
func (p *Pump) Step() (active, progressed bool) {
	switch p.state {
	case stateSpawned:
		p.bind()
		p.state = statePumping
		return true, true

	case statePumping:
		// Both sides every tick. Draining one side to exhaustion while the
		// other backs up deadlocks the child, so stdout and stderr are each
		// given one read per tick.
		prog := p.pumpStream(p.stdout)
		prog = p.pumpStream(p.stderr) || prog
		if p.stdout.done() && p.stderr.done() {
			p.state = stateDrained
			return true, true
		}
		return true, prog

	case stateDrained:
		select {
		case res := <-p.waitCh:
			p.node.recordExit(res.code)
			p.state = stateClosed
			p.logger.Debug("closed",
				zap.String("program", p.node.program),
				zap.Int("exit_code", res.code))
			return false, true
		default:
			return true, false
		}

	default:
		return false, false
	}
}

func (p *Pump) pumpStream(s *stream) bool {
	if s == nil || s.drained {
		return false
	}

	n, err := unix.Read(s.fd, p.buf)
	switch {
	case err == unix.EAGAIN || err == unix.EINTR:
		// No data yet. Not an error.
		return false

	case err != nil:
		p.logger.Warn("stream read failed",
			zap.Stringer("descriptor", s.desc),
			zap.String("program", p.node.program),
			zap.Error(err))
		p.closeStream(s, false)
		return true

	case n == 0: // end of stream
		p.closeStream(s, true)
		return true

	default:
		out, ferr := s.chain.Process(p.buf[:n])
		if ferr != nil {
			p.logger.Error("filter failure",
				zap.Stringer("descriptor", s.desc),
				zap.String("program", p.node.program),
				zap.Error(ferr))
			p.closeStream(s, false)
			return true
		}
		p.deliver(s, out)
		return true
	}
}

func (p *Pump) deliver(s *stream, data []byte) {
	if len(data) == 0 || s.sink == nil {
		return
	}
	if _, err := s.sink.Write(data); err != nil {
		p.logger.Warn("sink write failed",
			zap.Stringer("descriptor", s.desc), zap.Error(err))
	}
}

// closeStream closes one side: when flush is true the filter chain close
// runs first (trailing partial line, then each stage's flush, exactly
// once), and its output is delivered. The close callback always fires so a
// chained peer's stdin sees end-of-stream.
func (p *Pump) closeStream(s *stream, flush bool) {
	if flush {
		tail, err := s.chain.Close()
		if err != nil {
			p.logger.Error("filter failure at close",
				zap.Stringer("descriptor", s.desc),
				zap.String("program", p.node.program),
				zap.Error(err))
		} else {
			p.deliver(s, tail)
		}
	}
	s.file.Close()
	if s.onClose != nil {
		s.onClose()
	}
	s.drained = true
}

// Finish tears the pump down early: still-open pipe ends are closed, the
// child is killed if still running, and the exit status is reaped so no
// child is orphaned. Reaping always runs, even after an abnormal stream
// end.
func (p *Pump) Finish() {
	switch p.state {
	case stateCreated, stateFailed, stateClosed:
		return
	}

	for _, s := range []*stream{p.stdout, p.stderr} {
		if s != nil && !s.drained {
			s.file.Close()
			if s.onClose != nil {
				s.onClose()
			}
			s.drained = true
		}
	}

	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	res := <-p.waitCh
	p.node.recordExit(res.code)
	p.state = stateClosed
}
