// Package schema describes the shapes of PATCH API documents so callers can
// discover field names for --fields, --query and templates.
package schema

import (
	"fmt"
	"sort"
	"sync"
)

// Schema is a JSON Schema-like type definition.
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
}

var (
	registry = make(map[string]*Schema)
	mu       sync.RWMutex
)

// Register adds a schema to the registry, replacing any previous one.
func Register(name string, s *Schema) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = s
}

// Get returns the schema registered under name.
func Get(name string) (*Schema, error) {
	mu.RLock()
	defer mu.RUnlock()
	s, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("schema %q not found", name)
	}
	return s, nil
}

// List returns all registered names, sorted.
func List() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Fields returns the sorted property names of s, or of its array items.
func (s *Schema) Fields() []string {
	props := s.Properties
	if s.Items != nil {
		props = s.Items.Properties
	}
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func Object(desc string, props map[string]*Schema, required ...string) *Schema {
	return &Schema{Type: "object", Description: desc, Properties: props, Required: required}
}

func String(desc string) *Schema {
	return &Schema{Type: "string", Description: desc}
}

func Int(desc string) *Schema {
	return &Schema{Type: "integer", Description: desc}
}

func Number(desc string) *Schema {
	return &Schema{Type: "number", Description: desc}
}

func Bool(desc string) *Schema {
	return &Schema{Type: "boolean", Description: desc}
}

func Enum(desc string, values ...string) *Schema {
	return &Schema{Type: "string", Description: desc, Enum: values}
}

func Array(items *Schema, desc string) *Schema {
	return &Schema{Type: "array", Description: desc, Items: items}
}

// Timestamp is a Unix timestamp in seconds.
func Timestamp(desc string) *Schema {
	return &Schema{Type: "integer", Description: desc + " (Unix timestamp)"}
}

func Map(desc string) *Schema {
	return &Schema{Type: "object", Description: desc}
}

// ClearRegistry removes every schema. Tests use it with RegisterDefaults.
func ClearRegistry() {
	mu.Lock()
	defer mu.Unlock()
	registry = make(map[string]*Schema)
}
