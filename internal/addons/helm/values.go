package helm

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/faulty-technology/homelab/internal/util/digest"
)

// Values represents helm chart values as a map.
type Values map[string]any

// DeepMerge merges nested maps recursively with later maps taking
// precedence. Lists and scalars are replaced, not merged. Inputs are not
// modified.
func DeepMerge(valueMaps ...Values) Values {
	result := make(Values)
	for _, m := range valueMaps {
		deepMergeInto(result, m)
	}
	return result
}

func deepMergeInto(dst, src Values) {
	for k, v := range src {
		srcMap := toValuesMap(v)
		dstMap := toValuesMap(dst[k])
		if srcMap != nil && dstMap != nil {
			merged := make(Values, len(dstMap))
			deepMergeInto(merged, dstMap)
			deepMergeInto(merged, srcMap)
			dst[k] = merged
			continue
		}
		if srcMap != nil {
			cp := make(Values, len(srcMap))
			deepMergeInto(cp, srcMap)
			dst[k] = cp
			continue
		}
		dst[k] = v
	}
}

// toValuesMap returns v as Values when it is a map, nil otherwise.
func toValuesMap(v any) Values {
	switch m := v.(type) {
	case Values:
		return m
	case map[string]any:
		return Values(m)
	}
	return nil
}

// ToMap converts nested Values into plain maps as Helm expects.
func (v Values) ToMap() map[string]any {
	out := make(map[string]any, len(v))
	for k, val := range v {
		if m := toValuesMap(val); m != nil {
			out[k] = m.ToMap()
			continue
		}
		out[k] = val
	}
	return out
}

// ToYAML converts values to YAML bytes.
func (v Values) ToYAML() ([]byte, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)

	if err := encoder.Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode values to YAML: %w", err)
	}

	return buf.Bytes(), nil
}

// FromYAML parses YAML bytes into Values. Empty input yields empty Values.
func FromYAML(data []byte) (Values, error) {
	var values Values
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse YAML values: %w", err)
	}
	if values == nil {
		values = Values{}
	}
	return values, nil
}

// Digest identifies a chart version rendered with a set of values. The YAML
// encoder sorts map keys, so equal values always produce the same digest.
func Digest(chart, version string, values Values) (string, error) {
	data, err := values.ToYAML()
	if err != nil {
		return "", err
	}
	return digest.SumAll([]byte(chart), []byte(version), data), nil
}
