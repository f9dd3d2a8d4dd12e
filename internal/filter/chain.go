package filter

import (
	"bytes"
	"fmt"
)

// Error reports a transform failure. It is scoped to one stream of one
// process: the stream's pumping halts, but the sibling stream and the rest
// of the chain continue.
type Error struct {
	Stage string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("filter %q: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Chain is a sequence of stages bound to one live stream. It owns the
// per-stream state (line reassembly buffers, close flags) that the stage
// templates deliberately don't carry.
type Chain struct {
	stages []*boundStage
}

type boundStage struct {
	stage  *Stage
	buf    bytes.Buffer // pending partial line, Line granularity only
	closed bool
}

// NewChain binds the stages matching dir, preserving their order. Stages
// for the other direction are ignored.
func NewChain(stages []*Stage, dir Direction) *Chain {
	c := &Chain{}
	for _, s := range stages {
		if s.direction != dir {
			continue
		}
		c.stages = append(c.stages, &boundStage{stage: s})
	}
	return c
}

// Len returns the number of bound stages.
func (c *Chain) Len() int { return len(c.stages) }

// Process pushes data through every stage in order and returns the
// transformed bytes. A transform error stops processing and is returned as
// an *Error naming the failed stage.
func (c *Chain) Process(data []byte) ([]byte, error) {
	for _, b := range c.stages {
		if len(data) == 0 {
			return nil, nil
		}
		out, err := b.feed(data)
		if err != nil {
			return nil, &Error{Stage: b.stage.name, Err: err}
		}
		data = out
	}
	return data, nil
}

// Close marks every stage closed, in order. Each stage first receives any
// output produced by upstream stages' closes, then delivers its own pending
// partial line (if any) and its flush output. Close is idempotent: a stage
// is closed at most once.
func (c *Chain) Close() ([]byte, error) {
	var carry []byte
	for _, b := range c.stages {
		var out []byte
		if len(carry) > 0 && !b.closed {
			res, err := b.feed(carry)
			if err != nil {
				return nil, &Error{Stage: b.stage.name, Err: err}
			}
			out = res
		}
		tail, err := b.close()
		if err != nil {
			return nil, &Error{Stage: b.stage.name, Err: err}
		}
		out = append(out, tail...)
		carry = out
	}
	return carry, nil
}

func (b *boundStage) feed(data []byte) ([]byte, error) {
	if b.stage.granularity == Chunk {
		return b.stage.transform(data)
	}

	b.buf.Write(data)
	var out []byte
	for {
		raw := b.buf.Bytes()
		idx := bytes.IndexByte(raw, '\n')
		if idx < 0 {
			break
		}
		line := make([]byte, idx+1)
		copy(line, raw[:idx+1])
		b.buf.Next(idx + 1)

		res, err := b.stage.transform(line)
		if err != nil {
			return nil, err
		}
		out = append(out, res...)
	}
	return out, nil
}

// close delivers the trailing partial line (if non-empty) as a final line,
// then invokes flush if the stage supports it. Runs at most once.
func (b *boundStage) close() ([]byte, error) {
	if b.closed {
		return nil, nil
	}
	b.closed = true

	var out []byte
	if b.stage.granularity == Line && b.buf.Len() > 0 {
		partial := append([]byte(nil), b.buf.Bytes()...)
		b.buf.Reset()
		res, err := b.stage.transform(partial)
		if err != nil {
			return nil, err
		}
		out = append(out, res...)
	}
	if b.stage.hasFlush {
		out = append(out, b.stage.flush()...)
	}
	return out, nil
}
