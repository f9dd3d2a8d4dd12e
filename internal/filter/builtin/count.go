package builtin

import (
	"fmt"

	"github.com/marcelocantos/weld/internal/filter"
)

type Count struct{}

var _ filter.Builder = (*Count)(nil)

func (c *Count) Name() string        { return "count" }
func (c *Count) Description() string { return "swallow the stream, emit the line count at close" }

func (c *Count) Build(args []string) (*filter.Stage, error) {
	if len(args) != 0 {
		return nil, fmt.Errorf("count takes no arguments")
	}
	var n int
	return filter.New("count", filter.Read, filter.Line,
		func(line []byte) ([]byte, error) {
			n++
			return nil, nil
		},
		filter.WithFlush(func() []byte {
			return []byte(fmt.Sprintf("%d\n", n))
		}),
	), nil
}
