package builtin

import (
	"bytes"
	"fmt"

	"github.com/marcelocantos/weld/internal/filter"
)

type Replace struct{}

var _ filter.Builder = (*Replace)(nil)

func (r *Replace) Name() string        { return "replace" }
func (r *Replace) Description() string { return "replace a substring on every line" }

func (r *Replace) Build(args []string) (*filter.Stage, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("replace requires exactly two arguments")
	}
	from, to := []byte(args[0]), []byte(args[1])
	if len(from) == 0 {
		return nil, fmt.Errorf("replace: empty search string")
	}
	// Line granularity so a match can never straddle a chunk boundary.
	return filter.New("replace", filter.Read, filter.Line, func(line []byte) ([]byte, error) {
		return bytes.ReplaceAll(line, from, to), nil
	}), nil
}
