package builtin

import (
	"bytes"
	"fmt"

	"github.com/marcelocantos/weld/internal/filter"
)

type Upper struct{}

var _ filter.Builder = (*Upper)(nil)

func (u *Upper) Name() string        { return "upper" }
func (u *Upper) Description() string { return "uppercase stream bytes" }

func (u *Upper) Build(args []string) (*filter.Stage, error) {
	if len(args) != 0 {
		return nil, fmt.Errorf("upper takes no arguments")
	}
	return filter.New("upper", filter.Read, filter.Chunk, func(data []byte) ([]byte, error) {
		return bytes.ToUpper(data), nil
	}), nil
}
