package links

import (
	"encoding/json"
	"fmt"
)

// Canvas boards embed file references as structured fields rather than
// inline text: each node of type "file" carries a vault-relative path in its
// "file" field. The codec below touches only those recognized positions and
// leaves every other field untouched.

// ParseCanvasRefs returns the file paths referenced by a canvas document,
// in node order.
func ParseCanvasRefs(data []byte) ([]string, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("canvas: parse: %w", err)
	}
	var refs []string
	nodes, _ := doc["nodes"].([]any)
	for _, n := range nodes {
		node, ok := n.(map[string]any)
		if !ok {
			continue
		}
		if t, _ := node["type"].(string); t != "file" {
			continue
		}
		if f, ok := node["file"].(string); ok && f != "" {
			refs = append(refs, f)
		}
	}
	return refs, nil
}

// RewriteCanvasRefs rewrites every file reference for which redirect returns
// a replacement, re-serializing the document. The returned count is the
// number of references changed; when it is zero the original bytes are
// returned unchanged.
func RewriteCanvasRefs(data []byte, redirect func(string) (string, bool)) ([]byte, int, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, 0, fmt.Errorf("canvas: parse: %w", err)
	}
	changed := 0
	nodes, _ := doc["nodes"].([]any)
	for _, n := range nodes {
		node, ok := n.(map[string]any)
		if !ok {
			continue
		}
		if t, _ := node["type"].(string); t != "file" {
			continue
		}
		f, ok := node["file"].(string)
		if !ok || f == "" {
			continue
		}
		if to, ok := redirect(f); ok && to != f {
			node["file"] = to
			changed++
		}
	}
	if changed == 0 {
		return data, 0, nil
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, 0, fmt.Errorf("canvas: serialize: %w", err)
	}
	return out, changed, nil
}
