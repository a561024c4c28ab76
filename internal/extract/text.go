package extract

import (
	"github.com/abelzeko/riverstats/internal/entities"
)

// yearCutoff excludes calendar years and timestamp-like integers from delta candidates
const yearCutoff = 1900

// TextExtractor runs the label, unit, value and delta matchers over normalized text.
// It is immutable once built and safe for concurrent use.
type TextExtractor struct {
	windowSize int
	stops      map[entities.MetricKind][]string
}

// Option configures a TextExtractor
type Option func(*TextExtractor)

// WithWindowSize overrides DefaultWindowSize
func WithWindowSize(size int) Option {
	return func(e *TextExtractor) {
		if size > 0 {
			e.windowSize = size
		}
	}
}

// NewTextExtractor creates an extractor for a metric set. The labels of the other
// metrics in the set bound the span searched for each metric's delta.
func NewTextExtractor(specs []entities.MetricSpec, opts ...Option) TextExtractor {
	e := TextExtractor{
		windowSize: DefaultWindowSize,
		stops:      make(map[entities.MetricKind][]string, len(specs)),
	}
	for _, spec := range specs {
		for _, other := range specs {
			if other.Kind == spec.Kind {
				continue
			}
			e.stops[spec.Kind] = append(e.stops[spec.Kind], other.Labels...)
		}
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// Extract finds the metric in normalized text. Labels are tried in order and the
// first one yielding a value wins. A missing label or number is not an error.
// The delta span ends at the first label of any other metric rather than at the
// window end, so a neighbouring metric's numbers are never taken as this one's
// change; a metric whose delta only appears past that label reports none.
func (e TextExtractor) Extract(text string, spec entities.MetricSpec, prov entities.Provenance) entities.ExtractedReading {
	for _, label := range spec.Labels {
		idx, ok := LocateLabel(text, label)
		if !ok {
			continue
		}

		p := prov
		p.Label = label
		p.Offset = idx

		reading := e.extractWindow(Window(text, idx, label, e.windowSize), spec, p)
		if reading.Found() {
			return reading
		}
	}

	return entities.NoReading(spec.Kind, prov)
}

func (e TextExtractor) extractWindow(window string, spec entities.MetricSpec, prov entities.Provenance) entities.ExtractedReading {
	tokens := Tokenize(window)

	unit, ok := LocateUnit(tokens, spec.Units)
	if !ok {
		if len(tokens) > 0 {
			tokens = cutAtStop(window, tokens, e.stops[spec.Kind])
		}
		return positional(tokens, spec, prov)
	}

	value := LastNumber(tokens[:unit.Start])
	if value == nil {
		return entities.NoReading(spec.Kind, prov)
	}

	var delta *float64
	if spec.ExpectDelta {
		trailing := tokens[unit.End:]
		if len(trailing) > 0 {
			trailing = cutAtStop(window, trailing, e.stops[spec.Kind])
		}
		delta = PickDelta(trailing, *value)
	}

	return entities.NewReading(spec.Kind, value, unit.Unit, delta, prov)
}

// positional treats the first two numbers before the next metric's label as value and delta
func positional(tokens []Token, spec entities.MetricSpec, prov entities.Provenance) entities.ExtractedReading {
	nums := Numbers(tokens)
	if len(nums) == 0 {
		return entities.NoReading(spec.Kind, prov)
	}

	prov.Positional = true
	value := entities.Float(nums[0].Value)

	var delta *float64
	if spec.ExpectDelta && len(nums) > 1 {
		delta = entities.Float(nums[1].Value)
	}

	return entities.NewReading(spec.Kind, value, CanonicalUnit(spec.DefaultUnit), delta, prov)
}

// cutAtStop drops trailing tokens at or after the first stop label
func cutAtStop(window string, trailing []Token, stops []string) []Token {
	from := trailing[0].Start
	limit := len(window)
	for _, stop := range stops {
		if idx, ok := LocateLabel(window[from:], stop); ok && from+idx < limit {
			limit = from + idx
		}
	}

	for i, t := range trailing {
		if t.Start >= limit {
			return trailing[:i]
		}
	}
	return trailing
}

// LastNumber returns the value of the last number token, the one closest to a unit
// that follows the span
func LastNumber(tokens []Token) *float64 {
	for i := len(tokens) - 1; i >= 0; i-- {
		if tokens[i].Kind == TokenNumber {
			return entities.Float(tokens[i].Value)
		}
	}
	return nil
}

// PickDelta chooses the 24 hour change among the numbers trailing a unit.
// Values at or above 1900 are dropped, decimal tokens are preferred over integers,
// and scanning from the end the first value differing from primary wins. If every
// candidate equals primary the last one is returned anyway.
func PickDelta(tokens []Token, primary float64) *float64 {
	var all, fractional []float64
	for _, t := range tokens {
		if t.Kind != TokenNumber || t.Value >= yearCutoff {
			continue
		}
		all = append(all, t.Value)
		if t.Fractional {
			fractional = append(fractional, t.Value)
		}
	}

	candidates := all
	if len(fractional) > 0 {
		candidates = fractional
	}
	if len(candidates) == 0 {
		return nil
	}

	for i := len(candidates) - 1; i >= 0; i-- {
		if candidates[i] != primary {
			return entities.Float(candidates[i])
		}
	}
	return entities.Float(candidates[len(candidates)-1])
}
