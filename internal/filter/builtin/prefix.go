package builtin

import (
	"fmt"

	"github.com/marcelocantos/weld/internal/filter"
)

type Prefix struct{}

var _ filter.Builder = (*Prefix)(nil)

func (p *Prefix) Name() string        { return "prefix" }
func (p *Prefix) Description() string { return "prepend a tag to every line" }

func (p *Prefix) Build(args []string) (*filter.Stage, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("prefix requires exactly one argument")
	}
	tag := []byte(args[0])
	return filter.New("prefix", filter.Read, filter.Line, func(line []byte) ([]byte, error) {
		out := make([]byte, 0, len(tag)+len(line))
		out = append(out, tag...)
		return append(out, line...), nil
	}), nil
}
