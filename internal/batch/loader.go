// Package batch loads case files and assembles their prompts concurrently.
package batch

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cap-dcis-prompt-server/internal/domain"
)

// Case is one case read from a batch input
type Case struct {
	ID      string             `json:"id"`
	Source  string             `json:"source"`
	Data    domain.CaseData    `json:"-"`
	Context domain.CaseContext `json:"-"`
}

// Load reads every case from the given files and directories, in argument
// order. Directories contribute their supported files in lexical order.
func Load(paths ...string) ([]Case, error) {
	var cases []Case
	for _, p := range paths {
		files, err := expand(p)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			loaded, err := LoadFile(f)
			if err != nil {
				return nil, err
			}
			cases = append(cases, loaded...)
		}
	}
	return cases, nil
}

func expand(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", path, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || formatOf(e.Name()) == "" {
			continue
		}
		files = append(files, filepath.Join(path, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func formatOf(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return "json"
	case ".jsonl", ".ndjson":
		return "jsonl"
	case ".yaml", ".yml":
		return "yaml"
	}
	return ""
}

// LoadFile reads the cases in one JSON, JSON Lines or YAML file
func LoadFile(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var docs []any
	switch formatOf(path) {
	case "json":
		docs, err = decodeJSON(data)
	case "jsonl":
		docs, err = decodeJSONLines(data)
	case "yaml":
		docs, err = decodeYAML(data)
	default:
		return nil, fmt.Errorf("%s: unsupported case file type", path)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var raw []any
	for _, doc := range docs {
		raw = append(raw, flatten(doc)...)
	}

	base := filepath.Base(path)
	cases := make([]Case, 0, len(raw))
	for i, item := range raw {
		c, err := toCase(item)
		if err != nil {
			return nil, fmt.Errorf("%s: case %d: %w", path, i+1, err)
		}
		if c.ID == "" {
			c.ID = fmt.Sprintf("%s#%d", base, i+1)
		}
		c.Source = path
		cases = append(cases, c)
	}
	return cases, nil
}

// flatten expands a list or a {"cases": [...]} document into its items
func flatten(doc any) []any {
	switch v := doc.(type) {
	case []any:
		return v
	case map[string]any:
		if items, ok := v["cases"].([]any); ok && len(v) == 1 {
			return items
		}
	}
	return []any{doc}
}

// toCase accepts either {id, data, report_date, clinical_history} or a bare data object
func toCase(item any) (Case, error) {
	obj, ok := item.(map[string]any)
	if !ok {
		return Case{}, fmt.Errorf("expected an object, got %s", domain.Describe(item))
	}

	if data, ok := obj["data"].(map[string]any); ok {
		c := Case{Data: domain.CaseData(data)}
		if id, present := obj["id"]; present {
			s, ok := id.(string)
			if !ok {
				return Case{}, fmt.Errorf("case id must be a string, got %s", domain.Describe(id))
			}
			c.ID = s
		}
		var err error
		if c.Context.ReportDate, err = contextField(obj, "report_date"); err != nil {
			return Case{}, err
		}
		if c.Context.ClinicalHistory, err = contextField(obj, "clinical_history"); err != nil {
			return Case{}, err
		}
		if c.Context, err = c.Context.Normalize(); err != nil {
			return Case{}, err
		}
		return c, nil
	}
	return Case{Data: domain.CaseData(obj)}, nil
}

func contextField(obj map[string]any, key string) (string, error) {
	v, present := obj[key]
	if !present || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string, got %s", key, domain.Describe(v))
	}
	return s, nil
}

// ParseCase decodes a single case in JSON or YAML. Numbers keep their literal form.
func ParseCase(data []byte, format string) (Case, error) {
	var (
		docs []any
		err  error
	)
	switch format {
	case "json":
		docs, err = decodeJSON(data)
	case "yaml":
		docs, err = decodeYAML(data)
	default:
		return Case{}, fmt.Errorf("unsupported case format %q", format)
	}
	if err != nil {
		return Case{}, err
	}
	if len(docs) != 1 {
		return Case{}, fmt.Errorf("expected one case, found %d documents", len(docs))
	}
	return toCase(docs[0])
}

func decodeJSON(data []byte) ([]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("unexpected data after the top-level JSON value")
	}
	return []any{doc}, nil
}

func decodeJSONLines(data []byte) ([]any, error) {
	var docs []any
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(text))
		dec.UseNumber()
		var doc any
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		docs = append(docs, doc)
	}
	return docs, scanner.Err()
}

func decodeYAML(data []byte) ([]any, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	var docs []any
	for {
		var node yaml.Node
		if err := dec.Decode(&node); err != nil {
			if errors.Is(err, io.EOF) {
				return docs, nil
			}
			return nil, err
		}
		v, err := nodeValue(&node)
		if err != nil {
			return nil, err
		}
		docs = append(docs, v)
	}
}

// nodeValue converts a YAML node into the same shapes encoding/json produces with
// UseNumber, so numeric literals such as 2.50 keep their written precision.
func nodeValue(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return nodeValue(n.Content[0])

	case yaml.AliasNode:
		return nodeValue(n.Alias)

	case yaml.SequenceNode:
		items := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := nodeValue(c)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		return items, nil

	case yaml.MappingNode:
		obj := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i]
			if key.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: mapping keys must be scalars", key.Line)
			}
			v, err := nodeValue(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			obj[key.Value] = v
		}
		return obj, nil

	case yaml.ScalarNode:
		switch n.ShortTag() {
		case "!!null":
			return nil, nil
		case "!!bool":
			var b bool
			if err := n.Decode(&b); err != nil {
				return nil, err
			}
			return b, nil
		case "!!int", "!!float":
			return json.Number(n.Value), nil
		default:
			return n.Value, nil
		}
	}
	return nil, fmt.Errorf("line %d: unsupported YAML node", n.Line)
}
