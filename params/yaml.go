/*
yaml.go - YAML parameter files and date compaction

PURPOSE:
  Legislation parameters live in a YAML tree whose leaves carry DATED
  value lists. CompactLegislation picks, for every leaf, the value in
  force at the requested date and freezes the result into a Snapshot.

FILE FORMAT:
  impot:
    description: Impôt sur le revenu
    bareme:
      brackets:
        - threshold:
            values: [{start: 2001-01-01, value: 0}]
          rate:
            values: [{start: 2001-01-01, value: 0.10}]
    abattement:
      values:
        - start: 2010-01-01
          value: 0.1
        - start: 2014-01-01
          end: 2016-12-31
          value: 0.14

  A mapping with a "values" key is a dated leaf; a mapping with a
  "brackets" key is a scale; anything else is an inner node.
  "description" entries are documentation and are skipped.

COMPACTION:
  For each leaf the entry with the latest start <= date wins, provided
  its optional end has not passed. A leaf with no entry in force is
  dropped from the snapshot (reading it then fails with
  ErrParameterNotFound, which is the desired loud failure).

PRECISION:
  Scalar values are parsed from their YAML text into decimal.Decimal,
  never through float64.
*/
package params

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// YAML PROVIDER
// =============================================================================

// YAMLProvider implements Provider over a parsed YAML parameter tree.
// Snapshots are cached per date.
type YAMLProvider struct {
	root *rawNode

	mu    sync.Mutex
	cache map[string]*Snapshot
}

// ParseYAML parses a parameter document.
func ParseYAML(data []byte) (*YAMLProvider, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse parameters: %w", err)
	}
	if len(doc.Content) == 0 {
		return &YAMLProvider{root: &rawNode{}, cache: make(map[string]*Snapshot)}, nil
	}
	root, err := parseRawNode(doc.Content[0], "")
	if err != nil {
		return nil, err
	}
	return &YAMLProvider{root: root, cache: make(map[string]*Snapshot)}, nil
}

// LoadFile parses a parameter file from disk.
func LoadFile(path string) (*YAMLProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read parameters: %w", err)
	}
	return ParseYAML(data)
}

// CompactLegislation returns the snapshot in force at date. Snapshots
// are immutable and cached, so repeated calls for one date are cheap.
func (p *YAMLProvider) CompactLegislation(date time.Time) (*Snapshot, error) {
	key := date.Format("2006-01-02")
	p.mu.Lock()
	defer p.mu.Unlock()
	if snap, ok := p.cache[key]; ok {
		return snap, nil
	}
	root, err := p.root.compact(date)
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{date: date, root: root}
	p.cache[key] = snap
	return snap, nil
}

// =============================================================================
// RAW (DATED) TREE
// =============================================================================

type rawNode struct {
	children map[string]*rawNode
	leaf     []datedValue
	brackets []rawBracket
}

type rawBracket struct {
	threshold []datedValue
	rate      []datedValue
}

type datedValue struct {
	start time.Time
	end   *time.Time
	dec   *decimal.Decimal
	bool_ *bool
}

func parseRawNode(n *yaml.Node, path string) (*rawNode, error) {
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parameter node %q: expected a mapping", path)
	}
	keys := mappingKeys(n)

	if values, ok := keys["values"]; ok {
		leaf, err := parseDatedValues(values, path)
		if err != nil {
			return nil, err
		}
		return &rawNode{leaf: leaf}, nil
	}

	if brackets, ok := keys["brackets"]; ok {
		bs, err := parseBrackets(brackets, path)
		if err != nil {
			return nil, err
		}
		return &rawNode{brackets: bs}, nil
	}

	node := &rawNode{children: make(map[string]*rawNode, len(keys))}
	for name, value := range keys {
		if name == "description" {
			continue
		}
		child, err := parseRawNode(value, joinPath(path, name))
		if err != nil {
			return nil, err
		}
		node.children[name] = child
	}
	return node, nil
}

func parseBrackets(n *yaml.Node, path string) ([]rawBracket, error) {
	if n.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("parameter %q: brackets must be a sequence", path)
	}
	out := make([]rawBracket, 0, len(n.Content))
	for i, item := range n.Content {
		keys := mappingKeys(item)
		thresholdNode, ok := keys["threshold"]
		if !ok {
			return nil, fmt.Errorf("parameter %q: bracket %d without threshold", path, i)
		}
		rateNode, ok := keys["rate"]
		if !ok {
			return nil, fmt.Errorf("parameter %q: bracket %d without rate", path, i)
		}
		tKeys := mappingKeys(thresholdNode)
		rKeys := mappingKeys(rateNode)
		threshold, err := parseDatedValues(tKeys["values"], fmt.Sprintf("%s.brackets[%d].threshold", path, i))
		if err != nil {
			return nil, err
		}
		rate, err := parseDatedValues(rKeys["values"], fmt.Sprintf("%s.brackets[%d].rate", path, i))
		if err != nil {
			return nil, err
		}
		out = append(out, rawBracket{threshold: threshold, rate: rate})
	}
	return out, nil
}

func parseDatedValues(n *yaml.Node, path string) ([]datedValue, error) {
	if n == nil || n.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("parameter %q: values must be a sequence", path)
	}
	out := make([]datedValue, 0, len(n.Content))
	for i, item := range n.Content {
		keys := mappingKeys(item)
		dv := datedValue{}

		startNode, ok := keys["start"]
		if !ok {
			return nil, fmt.Errorf("parameter %q: value %d without start date", path, i)
		}
		start, err := time.ParseInLocation("2006-01-02", startNode.Value, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: bad start date %q", path, startNode.Value)
		}
		dv.start = start

		if endNode, ok := keys["end"]; ok {
			end, err := time.ParseInLocation("2006-01-02", endNode.Value, time.UTC)
			if err != nil {
				return nil, fmt.Errorf("parameter %q: bad end date %q", path, endNode.Value)
			}
			dv.end = &end
		}

		valueNode, ok := keys["value"]
		if !ok {
			return nil, fmt.Errorf("parameter %q: value %d without value", path, i)
		}
		if valueNode.Tag == "!!bool" {
			b := valueNode.Value == "true"
			dv.bool_ = &b
		} else {
			d, err := decimal.NewFromString(valueNode.Value)
			if err != nil {
				return nil, fmt.Errorf("parameter %q: bad numeric value %q", path, valueNode.Value)
			}
			dv.dec = &d
		}
		out = append(out, dv)
	}
	return out, nil
}

func mappingKeys(n *yaml.Node) map[string]*yaml.Node {
	out := make(map[string]*yaml.Node)
	if n == nil || n.Kind != yaml.MappingNode {
		return out
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		out[n.Content[i].Value] = n.Content[i+1]
	}
	return out
}

func joinPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

// =============================================================================
// COMPACTION
// =============================================================================

func (rn *rawNode) compact(date time.Time) (*Node, error) {
	if rn.leaf != nil {
		dv := valueInForce(rn.leaf, date)
		if dv == nil {
			// No value in force: the leaf disappears from the snapshot.
			return nil, nil
		}
		return &Node{dec: dv.dec, boolean: dv.bool_}, nil
	}
	if rn.brackets != nil {
		brackets := make([]Bracket, 0, len(rn.brackets))
		for _, rb := range rn.brackets {
			t := valueInForce(rb.threshold, date)
			r := valueInForce(rb.rate, date)
			if t == nil || r == nil || t.dec == nil || r.dec == nil {
				// The whole bracket must be in force to participate.
				continue
			}
			brackets = append(brackets, Bracket{Threshold: *t.dec, Rate: *r.dec})
		}
		if len(brackets) == 0 {
			return nil, nil
		}
		return &Node{scale: NewScale(brackets...)}, nil
	}
	node := &Node{children: make(map[string]*Node, len(rn.children))}
	for name, child := range rn.children {
		compacted, err := child.compact(date)
		if err != nil {
			return nil, err
		}
		if compacted != nil {
			node.children[name] = compacted
		}
	}
	return node, nil
}

// valueInForce picks the entry with the latest start <= date whose end,
// if any, has not passed.
func valueInForce(values []datedValue, date time.Time) *datedValue {
	var best *datedValue
	for i := range values {
		dv := &values[i]
		if dv.start.After(date) {
			continue
		}
		if dv.end != nil && date.After(*dv.end) {
			continue
		}
		if best == nil || dv.start.After(best.start) {
			best = dv
		}
	}
	return best
}
