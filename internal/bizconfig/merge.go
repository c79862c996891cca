package bizconfig

import (
	"encoding/json"

	"github.com/rotisserie/eris"
)

// deepMerge overlays patch onto base field by field. Nested objects merge
// recursively; scalars, arrays, and nulls in the patch replace the base
// value wholesale. Neither input map is mutated.
func deepMerge(base, patch map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, pv := range patch {
		pm, pOK := pv.(map[string]any)
		bm, bOK := out[k].(map[string]any)
		if pOK && bOK {
			out[k] = deepMerge(bm, pm)
			continue
		}
		out[k] = pv
	}
	return out
}

// decodePatch parses a JSON document into a map suitable for deepMerge.
// Anything other than a JSON object is rejected.
func decodePatch(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, eris.Wrap(err, "bizconfig: patch must be a JSON object")
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

// configToMap round-trips a BusinessConfig through JSON so it can take part
// in map-level merging.
func configToMap(c BusinessConfig) (map[string]any, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, eris.Wrap(err, "bizconfig: marshal config")
	}
	return decodePatch(raw)
}

// mapToConfig decodes a merged map back into the typed configuration.
func mapToConfig(m map[string]any) (BusinessConfig, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return BusinessConfig{}, eris.Wrap(err, "bizconfig: marshal merged map")
	}
	var cfg BusinessConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return BusinessConfig{}, eris.Wrap(err, "bizconfig: decode merged config")
	}
	return cfg, nil
}
