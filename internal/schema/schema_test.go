package schema

import (
	"reflect"
	"sort"
	"testing"
)

func TestRegisterAndGet(t *testing.T) {
	t.Cleanup(func() {
		ClearRegistry()
		RegisterDefaults()
	})

	Register("_test", Object("Test object", map[string]*Schema{
		"id":   String("Identifier"),
		"size": Int("Size"),
	}, "id"))

	got, err := Get("_test")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Type != "object" || got.Description != "Test object" {
		t.Errorf("got %+v", got)
	}
	if !reflect.DeepEqual(got.Fields(), []string{"id", "size"}) {
		t.Errorf("Fields() = %v", got.Fields())
	}

	if _, err := Get("_missing"); err == nil {
		t.Error("expected error for an unknown schema")
	}
}

func TestDefaultsRegistered(t *testing.T) {
	names := List()
	if !sort.StringsAreSorted(names) {
		t.Errorf("List() not sorted: %v", names)
	}
	for _, unit := range []string{"panel", "inverter", "plant"} {
		for _, interval := range []string{"5m", "day"} {
			name := "metrics/" + unit + "-" + interval
			s, err := Get(name)
			if err != nil {
				t.Errorf("%s not registered", name)
				continue
			}
			if s.Properties["unit"].Enum[0] != unit || s.Properties["interval"].Enum[0] != interval {
				t.Errorf("%s discriminants = %v %v", name, s.Properties["unit"].Enum, s.Properties["interval"].Enum)
			}
			if len(s.Properties["data"].Items.Required) == 0 {
				t.Errorf("%s has no required sample fields", name)
			}
		}
	}
	for _, name := range []string{"plant", "registry-record", "inverter-log", "health-level"} {
		if _, err := Get(name); err != nil {
			t.Errorf("%s not registered", name)
		}
	}
}

func TestFields_Array(t *testing.T) {
	s := Array(Object("item", map[string]*Schema{"b": Bool("b"), "a": Number("a")}), "list")
	if !reflect.DeepEqual(s.Fields(), []string{"a", "b"}) {
		t.Errorf("Fields() = %v", s.Fields())
	}
}

func TestClearRegistry(t *testing.T) {
	t.Cleanup(RegisterDefaults)
	ClearRegistry()
	if len(List()) != 0 {
		t.Errorf("List() after ClearRegistry = %v", List())
	}
}
