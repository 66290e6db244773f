package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

type objectSchema struct {
	Properties map[string]json.RawMessage `json:"properties"`
	Required   []string                   `json:"required"`
}

type property struct {
	Type        json.RawMessage `json:"type"`
	Description string          `json:"description"`
	Default     any             `json:"default"`
	Enum        []any           `json:"enum"`
	Items       *property       `json:"items"`
}

// ExtractOptions lists the properties of inputSchema, required ones first
// and then by flag name. An empty or null schema, or one without
// properties, yields no options. Properties that are not schema objects
// (boolean schemas, tuple items) are accepted as plain strings.
func ExtractOptions(inputSchema json.RawMessage) ([]ToolOption, error) {
	trimmed := bytes.TrimSpace(inputSchema)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var root objectSchema
	if err := json.Unmarshal(trimmed, &root); err != nil {
		return nil, fmt.Errorf("schema: failed to parse inputSchema: %w", err)
	}
	if len(root.Properties) == 0 {
		return nil, nil
	}

	options := make([]ToolOption, 0, len(root.Properties))
	for name, raw := range root.Properties {
		var prop property
		if err := json.Unmarshal(raw, &prop); err != nil {
			prop = property{}
		}
		options = append(options, ToolOption{
			PropertyName: name,
			FlagName:     ToFlagName(name),
			Description:  prop.Description,
			Required:     slices.Contains(root.Required, name),
			GoType:       prop.kind(),
			DefaultValue: prop.Default,
			EnumValues:   enumStrings(prop.Enum),
		})
	}

	slices.SortFunc(options, func(a, b ToolOption) int {
		if a.Required != b.Required {
			if a.Required {
				return -1
			}
			return 1
		}
		return strings.Compare(a.FlagName, b.FlagName)
	})
	return options, nil
}

func (p *property) kind() string {
	switch p.primaryType() {
	case "integer":
		return KindInt
	case "number":
		return KindNumber
	case "boolean":
		return KindBool
	case "object":
		return KindObject
	case "array":
		if p.Items != nil && p.Items.primaryType() == "integer" {
			return KindIntList
		}
		return KindStringList
	default:
		return KindString
	}
}

// primaryType returns the declared type, or the first non-null entry when
// the type is a list such as ["string", "null"].
func (p *property) primaryType() string {
	if len(p.Type) == 0 {
		return ""
	}
	var single string
	if err := json.Unmarshal(p.Type, &single); err == nil {
		return single
	}
	var list []string
	if err := json.Unmarshal(p.Type, &list); err == nil {
		for _, t := range list {
			if t != "null" {
				return t
			}
		}
	}
	return ""
}

func enumStrings(values []any) []string {
	if values == nil {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, fmt.Sprint(v))
	}
	return out
}
