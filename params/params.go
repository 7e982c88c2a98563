/*
Package params provides dated legislation parameter snapshots.

PURPOSE:
  Formulas read policy parameters (rates, thresholds, tax scales) from a
  Snapshot: an immutable tree compacted for one evaluation date. The
  engine treats snapshots as opaque values; only formulas look inside.

KEY CONCEPTS:
  - Snapshot: Read-only, dated, pre-merged parameter tree
  - Node:     One tree position; inner node or typed leaf
  - Scale:    Marginal-rate tax scale (scale.go)
  - Provider: Source of snapshots for arbitrary dates (yaml.go)

PRECISION:
  Leaf values are decimal.Decimal, parsed from their textual source so
  0.1 stays 0.1. Formulas usually take the float view; monetary
  aggregation inside scales stays in decimals.

ACCESS ERRORS:
  Reading a missing path returns an error wrapping ErrParameterNotFound.
  Formulas are expected to propagate it: a missing parameter means the
  model and the parameter file disagree, never a silent zero.

SEE ALSO:
  - scale.go: Marginal tax scales
  - yaml.go:  YAML parameter files and date compaction
*/
package params

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrParameterNotFound is returned when a requested parameter path does
// not exist in the snapshot, or holds a different type than requested.
var ErrParameterNotFound = errors.New("parameter not found")

// ParameterError reports which path failed and why.
type ParameterError struct {
	Path   string
	Reason string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("parameter %q: %s", e.Path, e.Reason)
}

func (e *ParameterError) Unwrap() error { return ErrParameterNotFound }

// =============================================================================
// SNAPSHOT - Immutable, dated, compacted parameter tree
// =============================================================================

// Snapshot is the parameter tree in force at one date. Immutable; safe
// to share across simulations and goroutines.
type Snapshot struct {
	date time.Time
	root *Node
}

// Node is one position in the parameter tree: either an inner node with
// children, or a leaf holding a decimal, a boolean, or a scale.
type Node struct {
	children map[string]*Node
	dec      *decimal.Decimal
	boolean  *bool
	scale    *Scale
}

// Date returns the date the snapshot was compacted for.
func (s *Snapshot) Date() time.Time { return s.date }

// Node resolves a dotted path ("impot.bareme") to its tree node.
func (s *Snapshot) Node(path string) (*Node, error) {
	n := s.root
	if n == nil {
		return nil, &ParameterError{Path: path, Reason: "empty snapshot"}
	}
	for _, part := range strings.Split(path, ".") {
		child, ok := n.children[part]
		if !ok {
			return nil, &ParameterError{Path: path, Reason: "no such node"}
		}
		n = child
	}
	return n, nil
}

// Decimal returns the decimal leaf at path.
func (s *Snapshot) Decimal(path string) (decimal.Decimal, error) {
	n, err := s.Node(path)
	if err != nil {
		return decimal.Zero, err
	}
	if n.dec == nil {
		return decimal.Zero, &ParameterError{Path: path, Reason: "not a decimal leaf"}
	}
	return *n.dec, nil
}

// Float returns the decimal leaf at path as a float64.
func (s *Snapshot) Float(path string) (float64, error) {
	d, err := s.Decimal(path)
	if err != nil {
		return 0, err
	}
	f, _ := d.Float64()
	return f, nil
}

// Int returns the decimal leaf at path as an int, failing on
// non-integral values.
func (s *Snapshot) Int(path string) (int, error) {
	d, err := s.Decimal(path)
	if err != nil {
		return 0, err
	}
	if !d.Equal(d.Truncate(0)) {
		return 0, &ParameterError{Path: path, Reason: "not an integer"}
	}
	return int(d.IntPart()), nil
}

// Bool returns the boolean leaf at path.
func (s *Snapshot) Bool(path string) (bool, error) {
	n, err := s.Node(path)
	if err != nil {
		return false, err
	}
	if n.boolean == nil {
		return false, &ParameterError{Path: path, Reason: "not a boolean leaf"}
	}
	return *n.boolean, nil
}

// ScaleAt returns the tax scale at path.
func (s *Snapshot) ScaleAt(path string) (*Scale, error) {
	n, err := s.Node(path)
	if err != nil {
		return nil, err
	}
	if n.scale == nil {
		return nil, &ParameterError{Path: path, Reason: "not a scale"}
	}
	return n.scale, nil
}

// Has reports whether path resolves to any node.
func (s *Snapshot) Has(path string) bool {
	_, err := s.Node(path)
	return err == nil
}

// Children returns the sorted child names of the node at path; the
// empty path addresses the root.
func (s *Snapshot) Children(path string) ([]string, error) {
	n := s.root
	if path != "" {
		var err error
		n, err = s.Node(path)
		if err != nil {
			return nil, err
		}
	}
	out := make([]string, 0, len(n.children))
	for name := range n.children {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// =============================================================================
// PROGRAMMATIC CONSTRUCTION - Mostly for tests and small models
// =============================================================================

// NewSnapshot builds a snapshot from nested maps. Leaf values may be
// float64, int, decimal.Decimal, bool or *Scale; map[string]any values
// nest. Invalid leaf types fail.
func NewSnapshot(date time.Time, tree map[string]any) (*Snapshot, error) {
	root, err := buildNode(tree, "")
	if err != nil {
		return nil, err
	}
	return &Snapshot{date: date, root: root}, nil
}

func buildNode(tree map[string]any, path string) (*Node, error) {
	n := &Node{children: make(map[string]*Node, len(tree))}
	for name, raw := range tree {
		childPath := name
		if path != "" {
			childPath = path + "." + name
		}
		child := &Node{}
		switch x := raw.(type) {
		case map[string]any:
			built, err := buildNode(x, childPath)
			if err != nil {
				return nil, err
			}
			child = built
		case decimal.Decimal:
			child.dec = &x
		case float64:
			d := decimal.NewFromFloat(x)
			child.dec = &d
		case int:
			d := decimal.NewFromInt(int64(x))
			child.dec = &d
		case bool:
			b := x
			child.boolean = &b
		case *Scale:
			child.scale = x
		default:
			return nil, &ParameterError{Path: childPath, Reason: fmt.Sprintf("unsupported leaf type %T", raw)}
		}
		n.children[name] = child
	}
	return n, nil
}

// =============================================================================
// PROVIDER - Source of dated snapshots
// =============================================================================

// Provider yields the compacted legislation in force at a date. The
// YAML file provider in this package implements it; test doubles can
// wrap NewSnapshot.
type Provider interface {
	CompactLegislation(date time.Time) (*Snapshot, error)
}
