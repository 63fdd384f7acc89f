package uriremap

import (
	"encoding/json"

	"lspwsbridge/internal/lspenvelope"
)

// Rewrite walks every "uri" field nested anywhere inside the envelope's
// params and result objects and remaps it against root, in whichever
// direction applies (source:// -> file://, or file:// -> source:// for
// descendants of root). It reports whether anything changed.
func Rewrite(env *lspenvelope.Envelope, root *Root) (bool, error) {
	changedAny := false

	if raw := env.Params(); len(raw) > 0 {
		rewritten, changed, err := rewriteRaw(raw, root)
		if err != nil {
			return false, err
		}
		if changed {
			env.SetParams(rewritten)
			changedAny = true
		}
	}

	if raw := env.Result(); len(raw) > 0 {
		rewritten, changed, err := rewriteRaw(raw, root)
		if err != nil {
			return false, err
		}
		if changed {
			env.SetResult(rewritten)
			changedAny = true
		}
	}

	return changedAny, nil
}

func rewriteRaw(raw json.RawMessage, root *Root) (json.RawMessage, bool, error) {
	var value interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		// Not a JSON object/array we can walk (e.g. a bare scalar); leave as-is.
		return raw, false, nil
	}

	changed, err := walk(value, root)
	if err != nil {
		return nil, false, err
	}
	if !changed {
		return raw, false, nil
	}

	out, err := json.Marshal(value)
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}

// walk mutates value in place (maps/slices are reference types in Go), and
// reports whether it changed anything.
func walk(value interface{}, root *Root) (bool, error) {
	switch v := value.(type) {
	case map[string]interface{}:
		changed := false
		for key, child := range v {
			if key == "uri" {
				if s, ok := child.(string); ok {
					remapped, didChange, err := root.remap(s)
					if err != nil {
						return false, err
					}
					if didChange {
						v[key] = remapped
						changed = true
					}
					continue
				}
			}
			childChanged, err := walk(child, root)
			if err != nil {
				return false, err
			}
			changed = changed || childChanged
		}
		return changed, nil

	case []interface{}:
		changed := false
		for _, child := range v {
			childChanged, err := walk(child, root)
			if err != nil {
				return false, err
			}
			changed = changed || childChanged
		}
		return changed, nil

	default:
		return false, nil
	}
}
