package protocol

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// BodyDecoder turns a structured response body into a value.
// It receives exactly the declared body bytes, without the trailing CRLF.
type BodyDecoder func(body []byte) (any, error)

// DecodeYAML decodes the YAML documents beanstalkd sends for stats and
// list commands. Mappings decode to map[string]any, sequences to []any.
func DecodeYAML(body []byte) (any, error) {
	var v any
	if err := yaml.Unmarshal(body, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Dict returns v as a mapping, as produced by DecodeYAML for stats bodies.
func Dict(v any) (map[string]any, error) {
	switch m := v.(type) {
	case map[string]any:
		return m, nil
	case nil:
		return map[string]any{}, nil
	default:
		return nil, fmt.Errorf("beanstalk: expected a mapping, got %T", v)
	}
}

// StringList returns v as a list of strings, as produced by DecodeYAML for
// tube list bodies.
func StringList(v any) ([]string, error) {
	switch l := v.(type) {
	case []any:
		out := make([]string, 0, len(l))
		for _, item := range l {
			out = append(out, fmt.Sprint(item))
		}
		return out, nil
	case []string:
		return l, nil
	case nil:
		return []string{}, nil
	default:
		return nil, fmt.Errorf("beanstalk: expected a list, got %T", v)
	}
}
