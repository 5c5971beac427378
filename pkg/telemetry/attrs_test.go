package telemetry

import (
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func attrMap(attrs []attribute.KeyValue) map[attribute.Key]attribute.Value {
	m := make(map[attribute.Key]attribute.Value, len(attrs))
	for _, kv := range attrs {
		m[kv.Key] = kv.Value
	}
	return m
}

func TestSpanAttributesEmission(t *testing.T) {
	attrs := NewSpanAttributes(Building).
		WithTargetHarness("serialization").
		WithSanitizer("address").
		WithCorpusDir("corpus/serialization").
		WithCorpusSize(42).
		WithCorpusAdditions(3).
		WithExtraAttribute("fuzz.session.id", "abc").
		Attributes()

	m := attrMap(attrs)
	if got := m["fuzz.action.category"].AsString(); got != "building" {
		t.Errorf("category = %q, want building", got)
	}
	if got := m["fuzz.target.harness"].AsString(); got != "serialization" {
		t.Errorf("harness = %q", got)
	}
	if got := m["fuzz.corpus.size"].AsInt64(); got != 42 {
		t.Errorf("corpus size = %d, want 42", got)
	}
	if got := m["fuzz.corpus.additions"].AsInt64(); got != 3 {
		t.Errorf("corpus additions = %d, want 3", got)
	}
	if got := m["fuzz.session.id"].AsString(); got != "abc" {
		t.Errorf("extra attribute = %q, want abc", got)
	}
}

// Empty attributes only emit the category key; unset optionals stay out of
// the span entirely.
func TestEmptySpanAttributesOmitUnset(t *testing.T) {
	attrs := EmptySpanAttributes().Attributes()
	if len(attrs) != 1 {
		t.Fatalf("expected only the category attribute, got %v", attrs)
	}
	if attrs[0].Key != "fuzz.action.category" {
		t.Errorf("unexpected attribute %q", attrs[0].Key)
	}
}

func TestSpanAttributesMerge(t *testing.T) {
	parent := NewSpanAttributes(Fuzzing).
		WithSanitizer("address").
		WithCorpusSize(10).
		WithExtraAttribute("fuzz.session.id", "parent")

	child := EmptySpanAttributes().
		WithTargetHarness("pow_validation").
		WithCorpusSize(99).
		WithExtraAttribute("fuzz.session.id", "child").
		WithExtraAttribute("fuzz.failed.phase", "run")

	// inherited values fill only the fields the child left unset
	child.Merge(parent)
	m := attrMap(child.Attributes())

	if got := m["fuzz.action.category"].AsString(); got != "fuzzing" {
		t.Errorf("category = %q, want fuzzing (inherited)", got)
	}
	if got := m["fuzz.sanitizer"].AsString(); got != "address" {
		t.Errorf("sanitizer = %q, want address (inherited)", got)
	}
	if got := m["fuzz.target.harness"].AsString(); got != "pow_validation" {
		t.Errorf("harness = %q, want pow_validation (own)", got)
	}
	if got := m["fuzz.corpus.size"].AsInt64(); got != 99 {
		t.Errorf("corpus size = %d, want own value 99", got)
	}
	if got := m["fuzz.session.id"].AsString(); got != "child" {
		t.Errorf("session id = %q, want own value child", got)
	}
	if got := m["fuzz.failed.phase"].AsString(); got != "run" {
		t.Errorf("failed phase = %q, want run", got)
	}
}

func TestSpanAttributesMergeNil(t *testing.T) {
	attrs := NewSpanAttributes(Reporting)
	attrs.Merge(nil)
	if got := attrMap(attrs.Attributes())["fuzz.action.category"].AsString(); got != "reporting" {
		t.Errorf("category = %q after nil merge", got)
	}
}

func TestNewEventAttributes(t *testing.T) {
	attrs := NewEventAttributes(map[string]string{
		"exit_code": "77",
		"target":    "script_opcodes",
	})
	m := attrMap(attrs)
	if got := m["exit_code"].AsString(); got != "77" {
		t.Errorf("exit_code = %q, want 77", got)
	}
	if got := m["target"].AsString(); got != "script_opcodes" {
		t.Errorf("target = %q", got)
	}
}

func TestActionCategoryString(t *testing.T) {
	tests := []struct {
		category ActionCategory
		want     string
	}{
		{Fuzzing, "fuzzing"},
		{Building, "building"},
		{Reporting, "reporting"},
		{ActionCategory(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.category.String(); got != tt.want {
			t.Errorf("String(%d) = %q, want %q", int(tt.category), got, tt.want)
		}
	}
}
