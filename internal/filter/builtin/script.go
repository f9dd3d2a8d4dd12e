package builtin

import (
	"fmt"
	"os"

	"go.starlark.net/starlark"

	"github.com/marcelocantos/weld/internal/filter"
)

// Script builds a stage from a Starlark file. The file must define
// transform(line) returning a string; it may also define flush() returning
// a string, which makes the stage emit final output at stream close.
type Script struct{}

var _ filter.Builder = (*Script)(nil)

func (s *Script) Name() string        { return "script" }
func (s *Script) Description() string { return "run a Starlark transform over each line" }

func (s *Script) Build(args []string) (*filter.Stage, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("script requires a file path argument")
	}
	path := args[0]

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("script: %w", err)
	}

	thread := &starlark.Thread{Name: "filter:" + path}
	globals, err := starlark.ExecFile(thread, path, src, nil)
	if err != nil {
		return nil, fmt.Errorf("script %s: %w", path, err)
	}

	transform, ok := globals["transform"].(starlark.Callable)
	if !ok {
		return nil, fmt.Errorf("script %s: no transform function defined", path)
	}

	fn := func(line []byte) ([]byte, error) {
		v, err := starlark.Call(thread, transform, starlark.Tuple{starlark.String(line)}, nil)
		if err != nil {
			return nil, fmt.Errorf("transform: %w", err)
		}
		out, ok := starlark.AsString(v)
		if !ok {
			return nil, fmt.Errorf("transform returned %s, want string", v.Type())
		}
		return []byte(out), nil
	}

	var opts []filter.Option
	if flush, ok := globals["flush"].(starlark.Callable); ok {
		opts = append(opts, filter.WithFlush(func() []byte {
			v, err := starlark.Call(thread, flush, nil, nil)
			if err != nil {
				return nil
			}
			out, _ := starlark.AsString(v)
			return []byte(out)
		}))
	}

	return filter.New("script:"+path, filter.Read, filter.Line, fn, opts...), nil
}
