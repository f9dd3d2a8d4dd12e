package cli

import (
	"reflect"
	"strings"
	"testing"

	"github.com/marcelocantos/weld/internal/filter"
	"github.com/marcelocantos/weld/internal/pipeline"
)

func TestParseSingleCommand(t *testing.T) {
	nodes, err := Parse([]string{"grep", "-i", "error", "log.txt"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(nodes) != 1 {
		t.Fatalf("expected 1 node, got %d", len(nodes))
	}
	if nodes[0].Program() != "grep" {
		t.Errorf("program = %q, want grep", nodes[0].Program())
	}
	if got := nodes[0].Args(); !reflect.DeepEqual(got, []string{"-i", "error", "log.txt"}) {
		t.Errorf("args = %v", got)
	}
}

func TestParsePipeline(t *testing.T) {
	nodes, err := Parse([]string{"cat", "log.txt", "¦", "grep", "error", "¦", "head", "-5"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(nodes) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(nodes))
	}
	for i, want := range []string{"cat", "grep", "head"} {
		if nodes[i].Program() != want {
			t.Errorf("node %d program = %q, want %q", i, nodes[i].Program(), want)
		}
	}

	// Each non-final node's stdout chains to the next node.
	for i := 0; i < 2; i++ {
		spec := nodes[i].Descriptor(pipeline.Stdout)
		if spec.Kind() != pipeline.KindChain {
			t.Errorf("node %d stdout kind = %v, want chain", i, spec.Kind())
		}
		if spec.Peer() != nodes[i+1] {
			t.Errorf("node %d stdout peer is not node %d", i, i+1)
		}
	}
	if kind := nodes[2].Descriptor(pipeline.Stdout).Kind(); kind != pipeline.KindPipe {
		t.Errorf("final node stdout kind = %v, want pipe", kind)
	}
}

func TestParseRedirects(t *testing.T) {
	nodes, err := Parse([]string{"sort", "‹", "in.txt", "›", "out.txt"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(nodes) != 1 {
		t.Fatalf("expected 1 node, got %d", len(nodes))
	}
	if kind := nodes[0].Descriptor(pipeline.Stdin).Kind(); kind != pipeline.KindFile {
		t.Errorf("stdin kind = %v, want file", kind)
	}
	if kind := nodes[0].Descriptor(pipeline.Stdout).Kind(); kind != pipeline.KindFile {
		t.Errorf("stdout kind = %v, want file", kind)
	}
	if got := nodes[0].Args(); len(got) != 0 {
		t.Errorf("redirect tokens leaked into args: %v", got)
	}
}

func TestParseRedirectsApplyToChainEnds(t *testing.T) {
	nodes, err := Parse([]string{"cat", "‹", "in.txt", "¦", "wc", "-l", "›", "out.txt"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(nodes))
	}
	if kind := nodes[0].Descriptor(pipeline.Stdin).Kind(); kind != pipeline.KindFile {
		t.Errorf("first node stdin kind = %v, want file", kind)
	}
	if kind := nodes[1].Descriptor(pipeline.Stdout).Kind(); kind != pipeline.KindFile {
		t.Errorf("last node stdout kind = %v, want file", kind)
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name string
		args []string
	}{
		{"empty", nil},
		{"leading pipe", []string{"¦", "grep", "x"}},
		{"trailing pipe", []string{"grep", "x", "¦"}},
		{"double pipe", []string{"a", "¦", "¦", "b"}},
		{"redirect without file", []string{"sort", "‹"}},
		{"double redirect in", []string{"a", "‹", "x", "‹", "y"}},
		{"double redirect out", []string{"a", "›", "x", "›", "y"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse(tc.args); err == nil {
				t.Errorf("Parse(%v) succeeded, want error", tc.args)
			}
		})
	}
}

func TestParseFilterSpec(t *testing.T) {
	cases := []struct {
		in   string
		want FilterSpec
	}{
		{"stdout:upper", FilterSpec{Descriptor: pipeline.Stdout, Name: "upper"}},
		{"stderr:prefix:err| ", FilterSpec{Descriptor: pipeline.Stderr, Name: "prefix", Args: []string{"err| "}}},
		{"2:stdout:match:error", FilterSpec{Index: 2, Descriptor: pipeline.Stdout, Name: "match", Args: []string{"error"}}},
		{"stdout:replace:foo,bar", FilterSpec{Descriptor: pipeline.Stdout, Name: "replace", Args: []string{"foo", "bar"}}},
		{"stdin:count", FilterSpec{Descriptor: pipeline.Stdin, Name: "count"}},
	}
	for _, tc := range cases {
		got, err := ParseFilterSpec(tc.in)
		if err != nil {
			t.Errorf("ParseFilterSpec(%q): %v", tc.in, err)
			continue
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("ParseFilterSpec(%q) = %+v, want %+v", tc.in, got, tc.want)
		}
	}
}

func TestParseFilterSpecErrors(t *testing.T) {
	for _, in := range []string{"", "upper", "0:stdout:upper", "bogus:upper"} {
		if _, err := ParseFilterSpec(in); err == nil {
			t.Errorf("ParseFilterSpec(%q) succeeded, want error", in)
		}
	}
}

func TestApplyFilter(t *testing.T) {
	reg := filter.NewRegistry()
	reg.Register(&stubBuilder{name: "upper"})

	nodes, err := Parse([]string{"a", "¦", "b", "¦", "c"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	// Index 0 targets every segment.
	if err := ApplyFilter(nodes, reg, FilterSpec{Descriptor: pipeline.Stdout, Name: "upper"}); err != nil {
		t.Fatalf("ApplyFilter: %v", err)
	}
	for i, n := range nodes {
		if got := len(n.Stages(pipeline.Stdout)); got != 1 {
			t.Errorf("node %d has %d stdout stages, want 1", i, got)
		}
	}

	// Explicit index targets only that segment.
	if err := ApplyFilter(nodes, reg, FilterSpec{Index: 2, Descriptor: pipeline.Stderr, Name: "upper"}); err != nil {
		t.Fatalf("ApplyFilter: %v", err)
	}
	if got := len(nodes[1].Stages(pipeline.Stderr)); got != 1 {
		t.Errorf("node 2 has %d stderr stages, want 1", got)
	}
	if got := len(nodes[0].Stages(pipeline.Stderr)); got != 0 {
		t.Errorf("node 1 has %d stderr stages, want 0", got)
	}

	// Out-of-range index fails.
	err = ApplyFilter(nodes, reg, FilterSpec{Index: 4, Descriptor: pipeline.Stdout, Name: "upper"})
	if err == nil || !strings.Contains(err.Error(), "no segment 4") {
		t.Errorf("expected out-of-range error, got %v", err)
	}

	// Unknown filter name fails.
	if err := ApplyFilter(nodes, reg, FilterSpec{Descriptor: pipeline.Stdout, Name: "nope"}); err == nil {
		t.Error("expected unknown filter error")
	}
}

func TestApplyFilterStdinRunsOnWriteSide(t *testing.T) {
	reg := filter.NewRegistry()
	reg.Register(&stubBuilder{name: "upper"})

	nodes, err := Parse([]string{"a", "¦", "b"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	fs, err := ParseFilterSpec("2:stdin:upper")
	if err != nil {
		t.Fatalf("ParseFilterSpec: %v", err)
	}
	if err := ApplyFilter(nodes, reg, fs); err != nil {
		t.Fatalf("ApplyFilter: %v", err)
	}

	stages := nodes[1].Stages(pipeline.Stdin)
	if len(stages) != 1 {
		t.Fatalf("stdin stages = %d, want 1", len(stages))
	}
	// Chained stdin is fed through a Write-direction chain; a Read-tagged
	// stage there would never run.
	if got := stages[0].Direction(); got != filter.Write {
		t.Errorf("stdin stage direction = %v, want write", got)
	}
	if got := nodes[1].Stages(pipeline.Stdout); len(got) != 0 {
		t.Errorf("stdout gained %d stages", len(got))
	}
}

type stubBuilder struct{ name string }

func (b *stubBuilder) Name() string        { return b.name }
func (b *stubBuilder) Description() string { return "stub" }
func (b *stubBuilder) Build(args []string) (*filter.Stage, error) {
	return filter.New(b.name, filter.Read, filter.Chunk, func(p []byte) ([]byte, error) {
		return p, nil
	}), nil
}
