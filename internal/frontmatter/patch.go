// Package frontmatter applies targeted field patches to the YAML frontmatter
// block of a Markdown file. Patches operate on the yaml.Node tree so that
// untouched keys keep their order, comments, and scalar style, and the note
// body is carried through byte-for-byte.
package frontmatter

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Doc is a mutable view of a note's frontmatter mapping, scoped to the keys
// a patch actually touches.
type Doc struct {
	mapping *yaml.Node
	changed bool
}

// Get returns the scalar value of key, if present.
func (d *Doc) Get(key string) (string, bool) {
	if v := d.find(key); v != nil && v.Kind == yaml.ScalarNode {
		return v.Value, true
	}
	return "", false
}

// Has reports whether key is present.
func (d *Doc) Has(key string) bool {
	return d.find(key) != nil
}

// Set adds or replaces key with a scalar value.
func (d *Doc) Set(key, value string) {
	if v := d.find(key); v != nil {
		if v.Kind == yaml.ScalarNode && v.Value == value {
			return
		}
		*v = yaml.Node{Kind: yaml.ScalarNode, Value: value}
		d.changed = true
		return
	}
	d.mapping.Content = append(d.mapping.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Value: key},
		&yaml.Node{Kind: yaml.ScalarNode, Value: value},
	)
	d.changed = true
}

// Remove deletes key. It reports whether the key was present.
func (d *Doc) Remove(key string) bool {
	c := d.mapping.Content
	for i := 0; i+1 < len(c); i += 2 {
		if c[i].Value == key {
			d.mapping.Content = append(c[:i], c[i+2:]...)
			d.changed = true
			return true
		}
	}
	return false
}

// StringList returns the string items of a sequence-valued key.
func (d *Doc) StringList(key string) []string {
	v := d.find(key)
	if v == nil || v.Kind != yaml.SequenceNode {
		return nil
	}
	var out []string
	for _, item := range v.Content {
		if item.Kind == yaml.ScalarNode {
			out = append(out, item.Value)
		}
	}
	return out
}

// SetStringList adds or replaces key with a sequence of scalar values.
func (d *Doc) SetStringList(key string, values []string) {
	seq := &yaml.Node{Kind: yaml.SequenceNode}
	for _, v := range values {
		seq.Content = append(seq.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: v})
	}
	if v := d.find(key); v != nil {
		*v = *seq
	} else {
		d.mapping.Content = append(d.mapping.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: key}, seq)
	}
	d.changed = true
}

func (d *Doc) find(key string) *yaml.Node {
	c := d.mapping.Content
	for i := 0; i+1 < len(c); i += 2 {
		if c[i].Value == key {
			return c[i+1]
		}
	}
	return nil
}

// Patch applies fn to the frontmatter of content and returns the updated file
// bytes. The second return reports whether anything changed; when false the
// original bytes are returned untouched. A file without a frontmatter block
// gains one only if fn makes changes.
func Patch(content []byte, fn func(*Doc)) ([]byte, bool, error) {
	block, body, hasBlock := split(content)

	mapping := &yaml.Node{Kind: yaml.MappingNode}
	if hasBlock {
		var root yaml.Node
		if err := yaml.Unmarshal(block, &root); err != nil {
			return nil, false, fmt.Errorf("frontmatter: parse: %w", err)
		}
		if len(root.Content) > 0 && root.Content[0].Kind == yaml.MappingNode {
			mapping = root.Content[0]
		}
	}

	doc := &Doc{mapping: mapping}
	fn(doc)
	if !doc.changed {
		return content, false, nil
	}

	var out bytes.Buffer
	out.WriteString("---\n")
	if len(mapping.Content) > 0 {
		enc := yaml.NewEncoder(&out)
		enc.SetIndent(2)
		if err := enc.Encode(mapping); err != nil {
			return nil, false, fmt.Errorf("frontmatter: encode: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, false, fmt.Errorf("frontmatter: encode: %w", err)
		}
	}
	out.WriteString("---\n")

	if hasBlock {
		out.Write(body)
	} else {
		// No original block: the whole file is body, separated by a blank line.
		if len(content) > 0 {
			out.WriteString("\n")
		}
		out.Write(content)
	}
	return out.Bytes(), true, nil
}

// split locates the raw frontmatter block. Unlike the parser it never trims
// the body: body is everything after the closing delimiter line, verbatim.
// Files saved with CRLF line endings are recognized the same way the parser
// recognizes them.
func split(content []byte) (block, body []byte, ok bool) {
	if !bytes.HasPrefix(content, []byte("---")) {
		return nil, nil, false
	}
	rest := content[len("---"):]
	switch {
	case bytes.HasPrefix(rest, []byte("\n")):
		rest = rest[1:]
	case bytes.HasPrefix(rest, []byte("\r\n")):
		rest = rest[2:]
	default:
		return nil, nil, false
	}
	end := bytes.Index(rest, []byte("\n---"))
	if end < 0 {
		return nil, nil, false
	}
	block = rest[:end+1]
	tail := rest[end+len("\n---"):]
	// The closing delimiter must end its line.
	switch {
	case len(tail) == 0:
		body = nil
	case tail[0] == '\n':
		body = tail[1:]
	case bytes.HasPrefix(tail, []byte("\r\n")):
		body = tail[2:]
	default:
		return nil, nil, false
	}
	return block, body, true
}
