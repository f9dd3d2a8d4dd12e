package builtin

import (
	"bytes"
	"fmt"

	"github.com/marcelocantos/weld/internal/filter"
)

type Match struct{}

var _ filter.Builder = (*Match)(nil)

func (m *Match) Name() string        { return "match" }
func (m *Match) Description() string { return "keep only lines containing a substring" }

func (m *Match) Build(args []string) (*filter.Stage, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("match requires exactly one argument")
	}
	needle := []byte(args[0])
	return filter.New("match", filter.Read, filter.Line, func(line []byte) ([]byte, error) {
		if bytes.Contains(line, needle) {
			return line, nil
		}
		return nil, nil
	}), nil
}
