package schema

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
)

// ParseArguments turns key=value entries into tool call arguments, coercing
// each value to the type its schema property declares. A key may be given
// as the property name ("issueId") or its flag name ("issue-id").
//
// When opts is empty the tool published no properties; every key is then
// accepted and values that parse as JSON are passed through as JSON.
func ParseArguments(opts []ToolOption, entries []string) (map[string]any, error) {
	args := make(map[string]any, len(entries))
	for _, entry := range entries {
		key, raw, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("schema: invalid argument %q: expected key=value", entry)
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("schema: invalid argument %q: empty key", entry)
		}

		if len(opts) == 0 {
			args[key] = jsonOrString(raw)
			continue
		}

		opt, found := lookupOption(opts, key)
		if !found {
			return nil, fmt.Errorf("schema: unknown argument %q (known: %s)", key, strings.Join(propertyNames(opts), ", "))
		}
		value, err := Coerce(opt, raw)
		if err != nil {
			return nil, err
		}
		args[opt.PropertyName] = value
	}
	return args, nil
}

// CheckRequired returns an error naming every required property missing
// from args.
func CheckRequired(opts []ToolOption, args map[string]any) error {
	var missing []string
	for _, opt := range opts {
		if !opt.Required {
			continue
		}
		if _, ok := args[opt.PropertyName]; !ok {
			missing = append(missing, opt.PropertyName)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("schema: missing required argument(s): %s", strings.Join(missing, ", "))
	}
	return nil
}

// Coerce converts raw to opt.GoType. Enum-constrained strings must match
// one of the allowed values.
func Coerce(opt ToolOption, raw string) (any, error) {
	switch opt.GoType {
	case KindInt:
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("schema: argument %q: %q is not an integer", opt.PropertyName, raw)
		}
		return n, nil
	case KindNumber:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("schema: argument %q: %q is not a number", opt.PropertyName, raw)
		}
		return f, nil
	case KindBool:
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("schema: argument %q: %q is not a boolean", opt.PropertyName, raw)
		}
		return b, nil
	case KindStringList:
		if strings.HasPrefix(strings.TrimSpace(raw), "[") {
			var list []string
			if err := json.Unmarshal([]byte(raw), &list); err == nil {
				return list, nil
			}
		}
		return splitList(raw), nil
	case KindIntList:
		if strings.HasPrefix(strings.TrimSpace(raw), "[") {
			var list []int
			if err := json.Unmarshal([]byte(raw), &list); err != nil {
				return nil, fmt.Errorf("schema: argument %q: %q is not a list of integers", opt.PropertyName, raw)
			}
			return list, nil
		}
		parts := splitList(raw)
		list := make([]int, 0, len(parts))
		for _, p := range parts {
			n, err := strconv.Atoi(p)
			if err != nil {
				return nil, fmt.Errorf("schema: argument %q: %q is not an integer", opt.PropertyName, p)
			}
			list = append(list, n)
		}
		return list, nil
	case KindObject:
		var obj map[string]any
		if err := json.Unmarshal([]byte(raw), &obj); err != nil {
			return nil, fmt.Errorf("schema: argument %q: expected a JSON object", opt.PropertyName)
		}
		return obj, nil
	default:
		if len(opt.EnumValues) > 0 && !slices.Contains(opt.EnumValues, raw) {
			return nil, fmt.Errorf("schema: argument %q: %q is not one of %s", opt.PropertyName, raw, strings.Join(opt.EnumValues, ", "))
		}
		return raw, nil
	}
}

func lookupOption(opts []ToolOption, key string) (ToolOption, bool) {
	for _, opt := range opts {
		if opt.PropertyName == key || opt.FlagName == key {
			return opt, true
		}
	}
	return ToolOption{}, false
}

func propertyNames(opts []ToolOption) []string {
	names := make([]string, 0, len(opts))
	for _, opt := range opts {
		names = append(names, opt.PropertyName)
	}
	sort.Strings(names)
	return names
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// jsonOrString returns raw decoded as JSON when it is valid JSON, otherwise
// the raw string. This lets key=42 become a number and key=acme stay a string.
func jsonOrString(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}
