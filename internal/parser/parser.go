// Package parser reads and writes Markdown files with a YAML frontmatter
// block, keeping the key order of the block intact.
package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const delim = "---"

var (
	wikilinkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)
	tagRe      = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)
)

// Result holds the output of parsing a Markdown file.
type Result struct {
	Frontmatter map[string]any
	Keys        []string // frontmatter keys in file order
	Body        string
	Links       []string
	Tags        []string
	Title       string
}

// Parse extracts frontmatter, body, wikilinks and tags from raw Markdown.
// Content without a well-formed frontmatter block is all body.
func Parse(data []byte) (*Result, error) {
	blk, ok := split(data)
	if !ok {
		return finish(nil, nil, string(data)), nil
	}
	var node yaml.Node
	if err := yaml.Unmarshal(blk.yaml, &node); err != nil {
		return finish(nil, nil, string(data)), nil
	}
	var fm map[string]any
	if err := node.Decode(&fm); err != nil {
		return finish(nil, nil, string(data)), nil
	}
	return finish(fm, mappingKeys(&node), blk.body), nil
}

func finish(fm map[string]any, keys []string, body string) *Result {
	return &Result{
		Frontmatter: fm,
		Keys:        keys,
		Body:        body,
		Links:       extractLinks(body),
		Tags:        extractTags(body, fm),
		Title:       deriveTitle(fm, body),
	}
}

type block struct {
	yaml      []byte
	yamlStart int // byte offset of yaml within the original data
	body      string
}

// split separates the frontmatter block (between leading --- lines) from
// the body.
func split(data []byte) (block, bool) {
	lead := len(data) - len(bytes.TrimLeft(data, "\n\r"))
	trimmed := data[lead:]
	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return block{}, false
	}
	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return block{}, false
	}
	after := rest[idx+1+len(delim):]
	return block{
		yaml:      rest[:idx],
		yamlStart: lead + len(delim),
		body:      strings.TrimLeft(string(after), "\n\r"),
	}, true
}

func mappingKeys(doc *yaml.Node) []string {
	m := rootMapping(doc)
	if m == nil {
		return nil
	}
	keys := make([]string, 0, len(m.Content)/2)
	for i := 0; i+1 < len(m.Content); i += 2 {
		keys = append(keys, m.Content[i].Value)
	}
	return keys
}

func rootMapping(doc *yaml.Node) *yaml.Node {
	n := doc
	if n.Kind == yaml.DocumentNode && len(n.Content) > 0 {
		n = n.Content[0]
	}
	if n.Kind != yaml.MappingNode {
		return nil
	}
	return n
}

// Field is one frontmatter entry.
type Field struct {
	Key   string
	Value any
}

// Render serialises fields in order followed by body.
func Render(fields []Field, body string) ([]byte, error) {
	m := &yaml.Node{Kind: yaml.MappingNode}
	for _, f := range fields {
		var v yaml.Node
		if err := v.Encode(f.Value); err != nil {
			return nil, fmt.Errorf("parser: encode %s: %w", f.Key, err)
		}
		m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: f.Key}, &v)
	}

	var buf bytes.Buffer
	buf.WriteString(delim + "\n")
	if len(fields) > 0 {
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(m); err != nil {
			return nil, fmt.Errorf("parser: encode frontmatter: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("parser: encode frontmatter: %w", err)
		}
	}
	buf.WriteString(delim + "\n\n")
	buf.WriteString(body)
	return buf.Bytes(), nil
}

// Fields returns the frontmatter of r in file order.
func (r *Result) Fields() []Field {
	out := make([]Field, 0, len(r.Keys))
	for _, k := range r.Keys {
		out = append(out, Field{Key: k, Value: r.Frontmatter[k]})
	}
	return out
}

// SetField changes one top-level frontmatter key and leaves every other
// byte of data untouched. A single-line value is replaced in place; a
// missing key is appended before the closing delimiter. Multi-line values
// are re-encoded along with the rest of the block.
func SetField(data []byte, key string, value any) ([]byte, error) {
	blk, ok := split(data)
	if !ok {
		return nil, fmt.Errorf("parser: no frontmatter block")
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(blk.yaml, &doc); err != nil {
		return nil, fmt.Errorf("parser: parse frontmatter: %w", err)
	}
	m := rootMapping(&doc)
	if m == nil {
		return nil, fmt.Errorf("parser: frontmatter is not a mapping")
	}

	line, err := renderLine(key, value)
	if err != nil {
		return nil, err
	}

	lines := strings.SplitAfter(string(blk.yaml), "\n")
	for i := 0; i+1 < len(m.Content); i += 2 {
		k, v := m.Content[i], m.Content[i+1]
		if k.Value != key {
			continue
		}
		if v.Kind != yaml.ScalarNode || v.Style&(yaml.LiteralStyle|yaml.FoldedStyle) != 0 || v.Line != k.Line || !singleLine(m, i, lines) {
			return reencode(data, blk, &doc, m, i, value)
		}
		// yaml lines are 1-based and the block starts with the newline after "---".
		idx := k.Line - 1
		old := lines[idx]
		nl := ""
		if strings.HasSuffix(old, "\n") {
			nl = "\n"
		}
		indent := old[:len(old)-len(strings.TrimLeft(old, " "))]
		lines[idx] = indent + line + nl
		return splice(data, blk, strings.Join(lines, "")), nil
	}

	y := string(blk.yaml)
	if !strings.HasSuffix(y, "\n") {
		y += "\n"
	}
	return splice(data, blk, y+line), nil
}

// singleLine reports whether the entry at index i occupies exactly one line.
func singleLine(m *yaml.Node, i int, lines []string) bool {
	k := m.Content[i]
	if i+2 < len(m.Content) {
		return m.Content[i+2].Line == k.Line+1
	}
	// Last entry: everything after it must be blank.
	for _, l := range lines[k.Line:] {
		if strings.TrimSpace(l) != "" {
			return false
		}
	}
	return true
}

func renderLine(key string, value any) (string, error) {
	out, err := yaml.Marshal(map[string]any{key: value})
	if err != nil {
		return "", fmt.Errorf("parser: encode %s: %w", key, err)
	}
	s := strings.TrimRight(string(out), "\n")
	if strings.Contains(s, "\n") {
		return "", fmt.Errorf("parser: %s does not fit on one line", key)
	}
	return s, nil
}

func reencode(data []byte, blk block, doc *yaml.Node, m *yaml.Node, i int, value any) ([]byte, error) {
	var v yaml.Node
	if err := v.Encode(value); err != nil {
		return nil, fmt.Errorf("parser: encode value: %w", err)
	}
	m.Content[i+1] = &v
	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("parser: encode frontmatter: %w", err)
	}
	return splice(data, blk, "\n"+string(out)), nil
}

// splice replaces the yaml section of data with y. The result keeps the
// opening delimiter, the closing delimiter and the body bytes.
func splice(data []byte, blk block, y string) []byte {
	end := blk.yamlStart + len(blk.yaml)
	out := make([]byte, 0, len(data)+len(y))
	out = append(out, data[:blk.yamlStart]...)
	out = append(out, strings.TrimSuffix(y, "\n")...)
	out = append(out, data[end:]...)
	return out
}

// extractLinks returns deduplicated wikilink targets, normalising aliases.
func extractLinks(body string) []string {
	matches := wikilinkRe.FindAllStringSubmatch(body, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		target := m[1]
		if i := strings.Index(target, "|"); i >= 0 {
			target = target[:i]
		}
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	return out
}

// extractTags collects tags from the frontmatter "tags" list, then inline #tags.
func extractTags(body string, fm map[string]any) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	if items, ok := fm["tags"].([]any); ok {
		for _, item := range items {
			if s, ok := item.(string); ok {
				add(s)
			}
		}
	}
	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}
	return out
}

// deriveTitle returns the frontmatter title, otherwise the first H1.
func deriveTitle(fm map[string]any, body string) string {
	if s, ok := fm["title"].(string); ok && s != "" {
		return s
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
