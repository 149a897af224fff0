package generate

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Result is a parsed component suggestion.
type Result struct {
	ComponentName string `json:"component" yaml:"component"`
	Reason        string `json:"reason" yaml:"reason"`
	RawCode       string `json:"code" yaml:"code"`
}

// Strategy tries to extract a Result from raw model output. It never fails loudly.
type Strategy func(raw string) (Result, bool)

// DefaultStrategies is the parse chain, tried in order.
var DefaultStrategies = []Strategy{
	ParseStrict,
	ParseFenced,
	ParseEmbedded,
}

var fenceRe = regexp.MustCompile("(?s)```(?:json|JSON)?[ \t]*\r?\n(.+?)\r?\n[ \t]*```")

// Parse returns the result of the first strategy that succeeds.
func Parse(raw string, strategies ...Strategy) (Result, error) {
	if len(strategies) == 0 {
		strategies = DefaultStrategies
	}
	for _, s := range strategies {
		if res, ok := s(raw); ok {
			return res, nil
		}
	}
	return Result{}, &ParseError{Raw: raw}
}

// ParseStrict parses the whole text as the expected JSON object.
func ParseStrict(raw string) (Result, bool) {
	return decodeResult([]byte(strings.TrimSpace(raw)))
}

// ParseFenced parses the content of the first fenced code block holding the object.
func ParseFenced(raw string) (Result, bool) {
	for _, m := range fenceRe.FindAllStringSubmatch(raw, -1) {
		if res, ok := ParseStrict(m[1]); ok {
			return res, true
		}
	}
	return Result{}, false
}

// ParseEmbedded scans for the first JSON object in the text that carries all three fields.
func ParseEmbedded(raw string) (Result, bool) {
	if !strings.Contains(raw, `"component"`) || !strings.Contains(raw, `"reason"`) || !strings.Contains(raw, `"code"`) {
		return Result{}, false
	}
	for i := strings.IndexByte(raw, '{'); i >= 0; {
		var w wireResult
		dec := json.NewDecoder(strings.NewReader(raw[i:]))
		if err := dec.Decode(&w); err == nil {
			if res, ok := w.result(); ok {
				return res, true
			}
		}
		next := strings.IndexByte(raw[i+1:], '{')
		if next < 0 {
			break
		}
		i += next + 1
	}
	return Result{}, false
}

// wireResult distinguishes missing fields from empty ones.
type wireResult struct {
	Component *string `json:"component"`
	Reason    *string `json:"reason"`
	Code      *string `json:"code"`
}

func (w wireResult) result() (Result, bool) {
	if w.Component == nil || w.Reason == nil || w.Code == nil {
		return Result{}, false
	}
	if strings.TrimSpace(*w.Component) == "" || strings.TrimSpace(*w.Code) == "" {
		return Result{}, false
	}
	return Result{ComponentName: *w.Component, Reason: *w.Reason, RawCode: *w.Code}, true
}

func decodeResult(data []byte) (Result, bool) {
	var w wireResult
	if err := json.Unmarshal(data, &w); err != nil {
		return Result{}, false
	}
	return w.result()
}
