package codec

import (
	"fmt"
	"strconv"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gopkg.in/yaml.v3"

	"github.com/agentic-research/vartree/internal/nv"
)

// ImportYAML parses src as a YAML document and imports it as name,
// keeping mapping keys in document order.
func ImportYAML(s *nv.Store, sc *nv.Scope, name string, src []byte) error {
	var doc yaml.Node
	if err := yaml.Unmarshal(src, &doc); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	data, err := fromYAML(&doc, 0)
	if err != nil {
		return err
	}
	return Import(s, sc, name, data)
}

const maxAliasDepth = 64

func fromYAML(n *yaml.Node, depth int) (any, error) {
	switch n.Kind {
	case 0:
		return nil, nil
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return fromYAML(n.Content[0], depth)
	case yaml.AliasNode:
		if depth > maxAliasDepth {
			return nil, fmt.Errorf("yaml line %d: alias nesting too deep", n.Line)
		}
		return fromYAML(n.Alias, depth+1)
	case yaml.MappingNode:
		m := orderedmap.New[string, any]()
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := fromYAML(n.Content[i+1], depth)
			if err != nil {
				return nil, err
			}
			m.Set(n.Content[i].Value, v)
		}
		return m, nil
	case yaml.SequenceNode:
		list := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := fromYAML(c, depth)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		return list, nil
	}
	switch n.ShortTag() {
	case "!!null":
		return nil, nil
	case "!!int":
		if i, err := strconv.ParseInt(n.Value, 0, 64); err == nil {
			return i, nil
		}
	case "!!float":
		if f, err := strconv.ParseFloat(n.Value, 64); err == nil {
			return f, nil
		}
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err == nil {
			return b, nil
		}
	}
	return n.Value, nil
}
