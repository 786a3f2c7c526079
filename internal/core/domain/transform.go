package domain

import (
	"fmt"
	"strings"
)

// ParseTransformations decodes the compact transformation list stored in
// a source's config, e.g. "rotate:degrees=90;zoom:percent=150". An empty
// string yields nil. Sources carry these so every page they produce
// starts with the same corrections applied.
func ParseTransformations(encoded string) ([]Transformation, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, nil
	}

	var result []Transformation
	for _, part := range strings.Split(encoded, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, rawArgs, _ := strings.Cut(part, ":")
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("%w: transformation with empty name", ErrInvalidInput)
		}
		transformation := Transformation{Name: name}
		if rawArgs != "" {
			transformation.Arguments = make(map[string]string)
			for _, arg := range strings.Split(rawArgs, ",") {
				key, value, ok := strings.Cut(strings.TrimSpace(arg), "=")
				if !ok || key == "" {
					return nil, fmt.Errorf("%w: malformed transformation argument %q", ErrInvalidInput, arg)
				}
				transformation.Arguments[key] = value
			}
		}
		result = append(result, transformation)
	}
	return result, nil
}
