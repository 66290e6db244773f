// Package toolargs holds default tool arguments configured for a server.
// Defaults come from the [params] and [tools.<name>.params] tables of the
// probe config and from --set / --set-tool flags. Explicit call arguments
// always win over defaults.
package toolargs

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// ToolParams holds default arguments for one tool.
type ToolParams struct {
	Params map[string]any `toml:"params" json:"params"`
}

// Defaults is the set of default arguments applied to tool calls.
type Defaults struct {
	// Params apply to every tool.
	Params map[string]any `toml:"params" json:"params"`
	// Tools maps a tool name to its own defaults, which override Params.
	Tools map[string]ToolParams `toml:"tools" json:"tools"`
}

// Validate rejects empty parameter names.
func (d *Defaults) Validate() error {
	for name := range d.Params {
		if name == "" {
			return fmt.Errorf("toolargs: global params contain an empty param name")
		}
	}
	for tool, tp := range d.Tools {
		if tool == "" {
			return fmt.Errorf("toolargs: per-tool params contain an empty tool name")
		}
		for name := range tp.Params {
			if name == "" {
				return fmt.Errorf("toolargs: tool %q params contain an empty param name", tool)
			}
		}
	}
	return nil
}

// For returns the defaults for toolName: global params overlaid with the
// tool's own params. The result is a fresh map.
func (d *Defaults) For(toolName string) map[string]any {
	merged := make(map[string]any, len(d.Params))
	maps.Copy(merged, d.Params)
	if tp, ok := d.Tools[toolName]; ok {
		maps.Copy(merged, tp.Params)
	}
	return merged
}

// Apply returns the arguments to send to toolName: its defaults overlaid
// with explicit. explicit is not modified.
func (d *Defaults) Apply(toolName string, explicit map[string]any) map[string]any {
	merged := d.For(toolName)
	maps.Copy(merged, explicit)
	return merged
}

// Names returns the sorted parameter names that have a default for toolName.
func (d *Defaults) Names(toolName string) []string {
	return slices.Sorted(maps.Keys(d.For(toolName)))
}

// WithOverrides returns a copy of d with --set key=value entries added to the
// global params and --set-tool tool.key=value entries added per tool.
// Overrides win over values already present. d may be nil.
func (d *Defaults) WithOverrides(globalSets, toolSets []string) (*Defaults, error) {
	out := &Defaults{
		Params: make(map[string]any),
		Tools:  make(map[string]ToolParams),
	}
	if d != nil {
		maps.Copy(out.Params, d.Params)
		for name, tp := range d.Tools {
			out.Tools[name] = ToolParams{Params: maps.Clone(tp.Params)}
		}
	}

	for _, entry := range globalSets {
		key, value, err := splitSet(entry, "--set")
		if err != nil {
			return nil, err
		}
		out.Params[key] = value
	}

	for _, entry := range toolSets {
		tool, rest, ok := strings.Cut(entry, ".")
		if !ok || tool == "" {
			return nil, fmt.Errorf("toolargs: invalid --set-tool %q: expected tool.key=value", entry)
		}
		key, value, err := splitSet(rest, "--set-tool")
		if err != nil {
			return nil, err
		}
		tp := out.Tools[tool]
		if tp.Params == nil {
			tp.Params = make(map[string]any)
		}
		tp.Params[key] = value
		out.Tools[tool] = tp
	}

	return out, nil
}

func splitSet(entry, flag string) (string, any, error) {
	key, raw, ok := strings.Cut(entry, "=")
	if !ok {
		return "", nil, fmt.Errorf("toolargs: invalid %s %q: expected key=value", flag, entry)
	}
	if key == "" {
		return "", nil, fmt.Errorf("toolargs: invalid %s %q: empty key", flag, entry)
	}
	return key, parseValue(raw), nil
}

// parseValue decodes raw as JSON when possible, so --set labels='["a","b"]'
// yields a list while --set org=acme stays a string.
func parseValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}
