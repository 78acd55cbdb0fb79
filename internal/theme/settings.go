package theme

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

type Action string

const (
	ActionInserted Action = "inserted"
	ActionEnabled  Action = "enabled"
)

// Block is the app embed block the installer manages inside settings_data.json.
type Block struct {
	ID   string
	Type string
}

func (b Block) definition() map[string]any {
	return map[string]any{
		"type":     b.Type,
		"disabled": false,
		"settings": map[string]any{
			"website_url": "",
			"email_id":    "",
		},
	}
}

// Settings is a decoded config/settings_data.json document.
// Unknown content is kept as-is; numbers stay json.Number so they round-trip verbatim.
type Settings struct {
	doc map[string]any
}

// EmptySettings is the document used when the theme has no settings asset yet.
func EmptySettings() *Settings {
	return &Settings{doc: map[string]any{
		"current": map[string]any{
			"blocks": map[string]any{},
		},
	}}
}

func ParseSettings(value string) (*Settings, error) {
	if strings.TrimSpace(value) == "" {
		return &Settings{doc: map[string]any{}}, nil
	}

	dec := json.NewDecoder(strings.NewReader(value))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAsset, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after document", ErrMalformedAsset)
	}

	doc, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: document is %s, want object", ErrMalformedAsset, kindOf(v))
	}
	return &Settings{doc: doc}, nil
}

// Normalize makes sure current, current.blocks and current.block_order exist.
// A key holding null counts as absent.
func (s *Settings) Normalize() error {
	current, err := ensureObject(s.doc, "current", "current")
	if err != nil {
		return err
	}
	if _, err := ensureObject(current, "blocks", "current.blocks"); err != nil {
		return err
	}
	if _, err := ensureArray(current, "block_order", "current.block_order"); err != nil {
		return err
	}
	return nil
}

// EnsureBlock inserts b, or re-enables it when already present. An existing
// entry keeps its settings and its position in block_order; it is appended
// only when block_order does not list it.
func (s *Settings) EnsureBlock(b Block) (Action, error) {
	if err := s.Normalize(); err != nil {
		return "", err
	}

	current := s.doc["current"].(map[string]any)
	blocks := current["blocks"].(map[string]any)

	action := ActionInserted
	if existing, ok := blocks[b.ID]; ok {
		def, ok := existing.(map[string]any)
		if !ok {
			return "", fmt.Errorf("%w: current.blocks[%q] is %s, want object", ErrMalformedAsset, b.ID, kindOf(existing))
		}
		def["disabled"] = false
		action = ActionEnabled
	} else {
		blocks[b.ID] = b.definition()
	}

	order := current["block_order"].([]any)
	if !containsID(order, b.ID) {
		current["block_order"] = append(order, b.ID)
	}
	return action, nil
}

// Encode renders the document the way the theme editor writes it: two-space
// indent, HTML left unescaped.
func (s *Settings) Encode() (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.doc); err != nil {
		return "", fmt.Errorf("encode settings: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// Block returns the raw definition stored under current.blocks[id].
func (s *Settings) Block(id string) (map[string]any, bool) {
	current, _ := s.doc["current"].(map[string]any)
	blocks, _ := current["blocks"].(map[string]any)
	def, ok := blocks[id].(map[string]any)
	return def, ok
}

// BlockOrder returns the string entries of current.block_order.
func (s *Settings) BlockOrder() []string {
	current, _ := s.doc["current"].(map[string]any)
	order, _ := current["block_order"].([]any)
	out := make([]string, 0, len(order))
	for _, v := range order {
		if id, ok := v.(string); ok {
			out = append(out, id)
		}
	}
	return out
}

func ensureObject(parent map[string]any, key, path string) (map[string]any, error) {
	v, ok := parent[key]
	if !ok || v == nil {
		m := map[string]any{}
		parent[key] = m
		return m, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s is %s, want object", ErrMalformedAsset, path, kindOf(v))
	}
	return m, nil
}

func ensureArray(parent map[string]any, key, path string) ([]any, error) {
	v, ok := parent[key]
	if !ok || v == nil {
		a := []any{}
		parent[key] = a
		return a, nil
	}
	a, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s is %s, want array", ErrMalformedAsset, path, kindOf(v))
	}
	return a, nil
}

func containsID(order []any, id string) bool {
	for _, v := range order {
		if s, ok := v.(string); ok && s == id {
			return true
		}
	}
	return false
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float64:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
