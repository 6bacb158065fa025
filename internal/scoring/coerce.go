package scoring

import (
	"github.com/medsimlab/clinsim-backend/internal/model"
)

// Answers arrive as untyped decoded JSON, so every shape check has to cope
// with both native Go types (tests, internal callers) and the generic
// string/[]any/map[string]any forms encoding/json produces.

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asStringSlice(v any) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return t, true
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

func asStringMap(v any) (map[string]string, bool) {
	switch t := v.(type) {
	case map[string]string:
		return t, true
	case map[string]any:
		out := make(map[string]string, len(t))
		for k, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out[k] = s
		}
		return out, true
	default:
		return nil, false
	}
}

func asBowtie(v any) (model.BowtieAnswer, bool) {
	switch t := v.(type) {
	case model.BowtieAnswer:
		return t, true
	case *model.BowtieAnswer:
		if t == nil {
			return model.BowtieAnswer{}, false
		}
		return *t, true
	case map[string]any:
		var out model.BowtieAnswer
		if s, ok := t["condition"].(string); ok {
			out.Condition = s
		}
		if actions, ok := asStringSlice(t["actions"]); ok {
			out.Actions = actions
		}
		if params, ok := asStringSlice(t["parameters"]); ok {
			out.Parameters = params
		}
		return out, true
	default:
		return model.BowtieAnswer{}, false
	}
}
