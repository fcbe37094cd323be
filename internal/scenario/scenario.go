package scenario

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// NodeSpec declares one workflow. Parent, when set, must name a node declared
// earlier in the file; the child is attached at build time.
type NodeSpec struct {
	ID     string `yaml:"id" json:"id"`
	Name   string `yaml:"name" json:"name"`
	Parent string `yaml:"parent" json:"parent"`
}

// File is the on-disk layout of a scenario.
type File struct {
	Name  string           `yaml:"name" json:"name"`
	Nodes []NodeSpec       `yaml:"nodes" json:"nodes"`
	Ops   []map[string]any `yaml:"ops" json:"ops"`
}

// Op is one decoded operation. Which fields matter depends on Kind.
type Op struct {
	Kind        string         `mapstructure:"op"`
	Parent      string         `mapstructure:"parent"`
	Child       string         `mapstructure:"child"`
	Node        string         `mapstructure:"node"`
	Status      string         `mapstructure:"status"`
	Level       string         `mapstructure:"level"`
	Message     string         `mapstructure:"message"`
	Attrs       map[string]any `mapstructure:"attrs"`
	State       map[string]any `mapstructure:"state"`
	Step        string         `mapstructure:"step"`
	Fail        string         `mapstructure:"fail"`
	ExpectError string         `mapstructure:"expect_error"`
}

// Operation kinds.
const (
	OpAttach   = "attach"
	OpDetach   = "detach"
	OpStatus   = "status"
	OpLog      = "log"
	OpSnapshot = "snapshot"
	OpStep     = "step"
)

// required lists the fields each kind needs.
var required = map[string][]string{
	OpAttach:   {"parent", "child"},
	OpDetach:   {"parent", "child"},
	OpStatus:   {"node", "status"},
	OpLog:      {"node", "message"},
	OpSnapshot: {"node"},
	OpStep:     {"node", "step"},
}

// Scenario is a validated scenario ready to build and run.
type Scenario struct {
	Name  string
	Nodes []NodeSpec
	Ops   []Op
}

// Load reads a scenario file (YAML, or JSON by extension).
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}

	var f File
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	if f.Name == "" {
		f.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return Parse(f)
}

// Parse decodes and validates the operations of f.
func Parse(f File) (*Scenario, error) {
	s := &Scenario{Name: f.Name, Nodes: f.Nodes}

	seen := make(map[string]bool, len(f.Nodes))
	for i, n := range f.Nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("node %d: missing id", i)
		}
		if seen[n.ID] {
			return nil, fmt.Errorf("node %d: duplicate id %q", i, n.ID)
		}
		if n.Parent != "" && !seen[n.Parent] {
			return nil, fmt.Errorf("node %q: parent %q must be declared before it", n.ID, n.Parent)
		}
		seen[n.ID] = true
		if s.Nodes[i].Name == "" {
			s.Nodes[i].Name = n.ID
		}
	}

	for i, raw := range f.Ops {
		op, err := decodeOp(raw)
		if err != nil {
			return nil, fmt.Errorf("op %d: %w", i, err)
		}
		for _, ref := range []string{op.Parent, op.Child, op.Node} {
			if ref != "" && !seen[ref] {
				return nil, fmt.Errorf("op %d (%s): unknown node %q", i, op.Kind, ref)
			}
		}
		s.Ops = append(s.Ops, op)
	}
	return s, nil
}

func decodeOp(raw map[string]any) (Op, error) {
	var op Op
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           &op,
	})
	if err != nil {
		return Op{}, err
	}
	if err := decoder.Decode(raw); err != nil {
		return Op{}, fmt.Errorf("failed to decode op: %w", err)
	}

	fields, ok := required[op.Kind]
	if !ok {
		return Op{}, fmt.Errorf("unknown op %q", op.Kind)
	}
	for _, field := range fields {
		if _, present := raw[field]; !present {
			return Op{}, fmt.Errorf("%s: missing %q", op.Kind, field)
		}
	}
	return op, nil
}

// String renders an op for logs and reports.
func (o Op) String() string {
	switch o.Kind {
	case OpAttach:
		return fmt.Sprintf("attach %s -> %s", o.Child, o.Parent)
	case OpDetach:
		return fmt.Sprintf("detach %s from %s", o.Child, o.Parent)
	case OpStatus:
		return fmt.Sprintf("status %s = %s", o.Node, o.Status)
	case OpLog:
		return fmt.Sprintf("log %s: %s", o.Node, o.Message)
	case OpSnapshot:
		return fmt.Sprintf("snapshot %s", o.Node)
	case OpStep:
		return fmt.Sprintf("step %s on %s", o.Step, o.Node)
	}
	return o.Kind
}
