package builtin

import (
	"bytes"
	"fmt"

	"github.com/marcelocantos/weld/internal/filter"
)

type Lower struct{}

var _ filter.Builder = (*Lower)(nil)

func (l *Lower) Name() string        { return "lower" }
func (l *Lower) Description() string { return "lowercase stream bytes" }

func (l *Lower) Build(args []string) (*filter.Stage, error) {
	if len(args) != 0 {
		return nil, fmt.Errorf("lower takes no arguments")
	}
	return filter.New("lower", filter.Read, filter.Chunk, func(data []byte) ([]byte, error) {
		return bytes.ToLower(data), nil
	}), nil
}
