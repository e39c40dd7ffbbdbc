package kube

import (
	"bytes"
	"fmt"

	"github.com/ghodss/yaml"
)

// ToYAML renders objects as a multi-document YAML stream
func ToYAML(objects ...interface{}) ([]byte, error) {
	var buf bytes.Buffer
	for i, obj := range objects {
		data, err := yaml.Marshal(obj)
		if err != nil {
			return nil, fmt.Errorf("failed to render %T: %w", obj, err)
		}
		if i > 0 {
			buf.WriteString("---\n")
		}
		buf.Write(data)
	}
	return buf.Bytes(), nil
}
