package schema

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Pair is one key/value entry of a mapping node.
type Pair struct {
	Key   string
	Value *yaml.Node
}

// Deref follows document and alias nodes to the node they wrap.
func Deref(n *yaml.Node) *yaml.Node {
	for n != nil {
		switch n.Kind {
		case yaml.DocumentNode:
			if len(n.Content) == 0 {
				return nil
			}
			n = n.Content[0]
		case yaml.AliasNode:
			n = n.Alias
		default:
			return n
		}
	}
	return nil
}

// IsMapping reports whether n is a mapping node.
func IsMapping(n *yaml.Node) bool {
	n = Deref(n)
	return n != nil && n.Kind == yaml.MappingNode
}

// IsNull reports whether n is absent or an explicit null.
func IsNull(n *yaml.Node) bool {
	n = Deref(n)
	return n == nil || (n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null")
}

// Pairs returns the entries of a mapping node in source order.
// Repeated keys are an error.
func Pairs(n *yaml.Node) ([]Pair, error) {
	n = Deref(n)
	if n == nil {
		return nil, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("expected a mapping at line %d", n.Line)
	}
	pairs := make([]Pair, 0, len(n.Content)/2)
	seen := make(map[string]bool, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := Deref(n.Content[i])
		if key == nil || key.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("non-scalar mapping key at line %d", n.Line)
		}
		if seen[key.Value] {
			return nil, fmt.Errorf("duplicate key %q at line %d", key.Value, key.Line)
		}
		seen[key.Value] = true
		pairs = append(pairs, Pair{Key: key.Value, Value: Deref(n.Content[i+1])})
	}
	return pairs, nil
}

// Lookup returns the value stored under key in a mapping node, or nil.
func Lookup(n *yaml.Node, key string) *yaml.Node {
	n = Deref(n)
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if k := Deref(n.Content[i]); k != nil && k.Value == key {
			return Deref(n.Content[i+1])
		}
	}
	return nil
}

// Has reports whether key is present in a mapping node, even with a null value.
func Has(n *yaml.Node, key string) bool {
	n = Deref(n)
	if n == nil || n.Kind != yaml.MappingNode {
		return false
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if k := Deref(n.Content[i]); k != nil && k.Value == key {
			return true
		}
	}
	return false
}

// String decodes a string scalar stored under key. Missing keys yield "".
func String(n *yaml.Node, key string) (string, error) {
	v := Lookup(n, key)
	if IsNull(v) {
		return "", nil
	}
	if v.Kind != yaml.ScalarNode {
		return "", fmt.Errorf("%s: expected a string at line %d", key, v.Line)
	}
	return v.Value, nil
}

// Bool decodes a boolean scalar stored under key. ok is false when the key is missing.
func Bool(n *yaml.Node, key string) (value, ok bool, err error) {
	v := Lookup(n, key)
	if IsNull(v) {
		return false, false, nil
	}
	if v.Kind != yaml.ScalarNode || v.ShortTag() != "!!bool" {
		return false, true, fmt.Errorf("%s: expected a boolean at line %d", key, v.Line)
	}
	if err := v.Decode(&value); err != nil {
		return false, true, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}

// Strings decodes a sequence of string scalars stored under key.
func Strings(n *yaml.Node, key string) ([]string, error) {
	v := Lookup(n, key)
	if IsNull(v) {
		return nil, nil
	}
	if v.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("%s: expected a list at line %d", key, v.Line)
	}
	out := make([]string, 0, len(v.Content))
	for _, item := range v.Content {
		item = Deref(item)
		if item == nil || item.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("%s: expected string items at line %d", key, v.Line)
		}
		out = append(out, item.Value)
	}
	return out, nil
}
