package telemetry

import (
	"fmt"
	"maps"

	"go.opentelemetry.io/otel/attribute"
)

type SpanAttributes struct {
	ActionCategory string

	targetHarness   optional[string] // fuzz.target.harness
	sanitizerName   optional[string] // fuzz.sanitizer
	corpusDir       optional[string] // fuzz.corpus.dir
	corpusSize      optional[int]    // fuzz.corpus.size
	corpusAdditions optional[int]    // fuzz.corpus.additions

	extraAttributes map[string]any
}

func NewSpanAttributes(actionCategory ActionCategory) *SpanAttributes {
	return &SpanAttributes{
		ActionCategory:  actionCategory.String(),
		extraAttributes: make(map[string]any),
	}
}

// returns an empty SpanAttributes instance with no action category.
// this is useful for creating a SpanAttributes instance that can be populated later.
func EmptySpanAttributes() *SpanAttributes {
	return &SpanAttributes{
		extraAttributes: make(map[string]any),
	}
}

// Merge updates the current SpanAttributes with values from another SpanAttributes.
// Values are only updated if they are set in the other SpanAttributes and not set in the current one.
// The ActionCategory is always updated regardless of its state.
func (o *SpanAttributes) Merge(other *SpanAttributes) {
	if other == nil {
		return
	}

	if other.ActionCategory != "" {
		o.ActionCategory = other.ActionCategory
	}

	mergeOptional(&o.targetHarness, &other.targetHarness)
	mergeOptional(&o.sanitizerName, &other.sanitizerName)
	mergeOptional(&o.corpusDir, &other.corpusDir)
	mergeOptional(&o.corpusSize, &other.corpusSize)
	mergeOptional(&o.corpusAdditions, &other.corpusAdditions)

	if o.extraAttributes == nil {
		o.extraAttributes = make(map[string]any)
	}
	for k, v := range other.extraAttributes {
		if _, exists := o.extraAttributes[k]; !exists {
			o.extraAttributes[k] = v
		}
	}
}

func (o *SpanAttributes) WithTargetHarness(val string) *SpanAttributes {
	o.targetHarness.Set(val)
	return o
}

func (o *SpanAttributes) WithSanitizer(val string) *SpanAttributes {
	o.sanitizerName.Set(val)
	return o
}

func (o *SpanAttributes) WithCorpusDir(val string) *SpanAttributes {
	o.corpusDir.Set(val)
	return o
}

func (o *SpanAttributes) WithCorpusSize(val int) *SpanAttributes {
	o.corpusSize.Set(val)
	return o
}

func (o *SpanAttributes) WithCorpusAdditions(val int) *SpanAttributes {
	o.corpusAdditions.Set(val)
	return o
}

func (o *SpanAttributes) WithExtraAttribute(key string, val any) *SpanAttributes {
	if o.extraAttributes == nil {
		o.extraAttributes = make(map[string]any)
	}
	o.extraAttributes[key] = val
	return o
}

func (o *SpanAttributes) WithExtraAttributes(attrs map[string]any) *SpanAttributes {
	if o.extraAttributes == nil {
		o.extraAttributes = make(map[string]any)
	}
	maps.Copy(o.extraAttributes, attrs)
	return o
}

func (o SpanAttributes) Attributes() []attribute.KeyValue {
	var attrs []attribute.KeyValue
	attrs = append(attrs, attribute.String("fuzz.action.category", o.ActionCategory))
	if o.targetHarness.set {
		attrs = append(attrs, attribute.String("fuzz.target.harness", o.targetHarness.val))
	}
	if o.sanitizerName.set {
		attrs = append(attrs, attribute.String("fuzz.sanitizer", o.sanitizerName.val))
	}
	if o.corpusDir.set {
		attrs = append(attrs, attribute.String("fuzz.corpus.dir", o.corpusDir.val))
	}
	if o.corpusSize.set {
		attrs = append(attrs, attribute.Int("fuzz.corpus.size", o.corpusSize.val))
	}
	if o.corpusAdditions.set {
		attrs = append(attrs, attribute.Int("fuzz.corpus.additions", o.corpusAdditions.val))
	}

	for k, v := range o.extraAttributes {
		switch val := v.(type) {
		case string:
			attrs = append(attrs, attribute.String(k, val))
		case int:
			attrs = append(attrs, attribute.Int(k, val))
		case int64:
			attrs = append(attrs, attribute.Int64(k, val))
		case float64:
			attrs = append(attrs, attribute.Float64(k, val))
		case bool:
			attrs = append(attrs, attribute.Bool(k, val))
		default:
			attrs = append(attrs, attribute.String(k, fmt.Sprintf("%v", val)))
		}
	}

	return attrs
}

type EventAttributes []attribute.KeyValue

func NewEventAttributes(attributes map[string]string) EventAttributes {
	attrs := make(EventAttributes, 0, len(attributes))
	for k, v := range attributes {
		attrs = append(attrs, attribute.String(k, v))
	}
	return attrs
}

type optional[T any] struct {
	val T
	set bool
}

func (o *optional[T]) Set(val T) { o.val = val; o.set = true }

func mergeOptional[T any](target, source *optional[T]) {
	if !target.set && source.set {
		target.val = source.val
		target.set = true
	}
}
