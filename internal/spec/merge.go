package spec

import (
	"fmt"

	"github.com/mohae/deepcopy"
	"gopkg.in/yaml.v3"
)

const kindKey = "kind"

// Merge overlays override onto baseline and returns a new tree; neither input is
// modified. Mapping keys from override win, nested mappings merge recursively, and
// sequences are merged element by element using each element's "kind" as identity.
// Kinds present on only one side are kept: baseline order first, then override-only
// kinds in override order.
func Merge(baseline, override *yaml.Node) (*yaml.Node, error) {
	base := document(baseline)
	over := document(override)

	switch {
	case base == nil && over == nil:
		return nil, nil
	case base == nil:
		return clone(over), nil
	case over == nil:
		return clone(base), nil
	}

	return mergeNodes(clone(base), over, "")
}

func document(n *yaml.Node) *yaml.Node {
	if n == nil || n.Kind == 0 {
		return nil
	}
	if n.Kind == yaml.DocumentNode {
		if len(n.Content) == 0 {
			return nil
		}
		return n.Content[0]
	}
	return n
}

func clone(n *yaml.Node) *yaml.Node {
	return deepcopy.Copy(n).(*yaml.Node)
}

func resolve(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}

// mergeNodes merges src into dst, which the caller owns.
func mergeNodes(dst, src *yaml.Node, path string) (*yaml.Node, error) {
	dst, src = resolve(dst), resolve(src)

	switch {
	case dst.Kind == yaml.MappingNode && src.Kind == yaml.MappingNode:
		return mergeMappings(dst, src, path)
	case dst.Kind == yaml.SequenceNode && src.Kind == yaml.SequenceNode:
		return mergeSequences(dst, src, path)
	default:
		return clone(src), nil
	}
}

func mergeMappings(dst, src *yaml.Node, path string) (*yaml.Node, error) {
	for i := 0; i+1 < len(src.Content); i += 2 {
		key, val := src.Content[i], src.Content[i+1]
		idx := mappingIndex(dst, key.Value)
		if idx < 0 {
			dst.Content = append(dst.Content, clone(key), clone(resolve(val)))
			continue
		}
		merged, err := mergeNodes(dst.Content[idx+1], val, joinPath(path, key.Value))
		if err != nil {
			return nil, err
		}
		dst.Content[idx+1] = merged
	}
	return dst, nil
}

func mergeSequences(dst, src *yaml.Node, path string) (*yaml.Node, error) {
	dstKinds, err := indexByKind(dst, path)
	if err != nil {
		return nil, err
	}
	srcKinds, err := indexByKind(src, path)
	if err != nil {
		return nil, err
	}

	out := &yaml.Node{Kind: yaml.SequenceNode, Tag: dst.Tag, Style: dst.Style, Line: dst.Line, Column: dst.Column}
	for i, item := range dst.Content {
		kind := dstKinds[i]
		j, ok := indexOf(srcKinds, kind)
		if !ok {
			out.Content = append(out.Content, item)
			continue
		}
		merged, err := mergeNodes(item, src.Content[j], fmt.Sprintf("%s[kind=%s]", path, kind))
		if err != nil {
			return nil, err
		}
		out.Content = append(out.Content, merged)
	}
	for j, item := range src.Content {
		if _, ok := indexOf(dstKinds, srcKinds[j]); !ok {
			out.Content = append(out.Content, clone(resolve(item)))
		}
	}
	return out, nil
}

// indexByKind returns the kind of every element of seq, rejecting elements without a
// kind and kinds that appear twice.
func indexByKind(seq *yaml.Node, path string) ([]string, error) {
	kinds := make([]string, len(seq.Content))
	seen := make(map[string]bool, len(seq.Content))
	for i, item := range seq.Content {
		elemPath := fmt.Sprintf("%s[%d]", path, i)
		item = resolve(item)
		if item.Kind != yaml.MappingNode {
			return nil, configErrorf(elemPath, "list element is not a mapping, cannot match by %s", kindKey)
		}
		idx := mappingIndex(item, kindKey)
		if idx < 0 || item.Content[idx+1].Value == "" {
			return nil, configErrorf(elemPath, "list element has no %s", kindKey)
		}
		kind := item.Content[idx+1].Value
		if seen[kind] {
			return nil, configErrorf(elemPath, "duplicate %s %q", kindKey, kind)
		}
		seen[kind] = true
		kinds[i] = kind
	}
	return kinds, nil
}

func mappingIndex(m *yaml.Node, key string) int {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return i
		}
	}
	return -1
}

func indexOf(list []string, s string) (int, bool) {
	for i, v := range list {
		if v == s {
			return i, true
		}
	}
	return -1, false
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
