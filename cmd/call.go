package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/thellimist/mcprobe/internal/mcp"
	"github.com/thellimist/mcprobe/internal/schema"
	"github.com/thellimist/mcprobe/internal/toolfilter"
)

var (
	flagArgs    []string
	flagJSON    string
	flagSet     []string
	flagSetTool []string
)

var callCmd = &cobra.Command{
	Use:   "call <tool>",
	Short: "Call one tool and print its result",
	Long: `Call one tool on an MCP server. Arguments are given as key=value and
coerced to the types the tool's input schema declares; --json passes a raw
JSON object instead. Default params from the config file and --set fill in
anything not given explicitly.

Examples:
  mcprobe call echo --url http://localhost:3456 --arg text=hi
  mcprobe call add --stdio ./mcprobe-testserver --arg a=2 --arg b=3.5
  mcprobe call search --http https://mcp.example.com/mcp --json '{"query":"x","limit":5}'`,
	Args: cobra.ExactArgs(1),
	RunE: runCall,
}

func init() {
	addTransportFlags(callCmd)
	addArgumentFlags(callCmd)
}

func addArgumentFlags(c *cobra.Command) {
	f := c.Flags()
	f.StringArrayVarP(&flagArgs, "arg", "a", nil, "tool argument as key=value (repeatable)")
	f.StringVar(&flagJSON, "json", "", "tool arguments as a JSON object")
	f.StringArrayVar(&flagSet, "set", nil, "default param for every tool as key=value (repeatable)")
	f.StringArrayVar(&flagSetTool, "set-tool", nil, "default param for one tool as tool.key=value (repeatable)")
}

func runCall(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.client.Close()

	view, err := callByName(ctx, s, args[0])
	if err != nil {
		return err
	}

	p := newPrinter(cmd)
	if p.structured() {
		if err := p.encode(view); err != nil {
			return err
		}
	} else {
		p.printCall(view)
	}
	if view.IsError {
		return fmt.Errorf("tool %s failed", view.Tool)
	}
	return nil
}

// callByName looks the tool up, builds its arguments and calls it.
func callByName(ctx context.Context, s *session, name string) (*callView, error) {
	tools, err := s.listTools(ctx)
	if err != nil {
		return nil, err
	}
	tool, err := findTool(tools, name)
	if err != nil {
		return nil, err
	}
	toolArgs, err := buildArguments(ctx, tool)
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Debug().Str("tool", tool.Name).Interface("arguments", toolArgs).Msg("calling tool")
	resp, err := s.callTool(ctx, tool.Name, toolArgs)
	if err != nil {
		return nil, err
	}
	return newCallView(tool.Name, resp)
}

func findTool(tools []mcp.Tool, name string) (mcp.Tool, error) {
	available := make([]string, 0, len(tools))
	for _, t := range tools {
		if t.Name == name {
			return t, nil
		}
		available = append(available, t.Name)
	}
	return mcp.Tool{}, toolfilter.NewNotFoundError(name, available)
}

// buildArguments merges --json, --arg and the configured defaults for tool.
// Explicit arguments win; defaults the tool's schema does not declare are
// dropped.
func buildArguments(ctx context.Context, tool mcp.Tool) (map[string]any, error) {
	opts, err := schema.ExtractOptions(tool.InputSchema)
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", tool.Name, err)
	}

	explicit := make(map[string]any)
	if flagJSON != "" {
		if err := json.Unmarshal([]byte(flagJSON), &explicit); err != nil {
			return nil, fmt.Errorf("--json must be a JSON object: %w", err)
		}
		if explicit == nil {
			explicit = make(map[string]any)
		}
	}
	parsed, err := schema.ParseArguments(opts, flagArgs)
	if err != nil {
		return nil, err
	}
	maps.Copy(explicit, parsed)

	defaults, err := cfg.Defaults.WithOverrides(flagSet, flagSetTool)
	if err != nil {
		return nil, err
	}
	if names := defaults.Names(tool.Name); len(names) > 0 {
		zerolog.Ctx(ctx).Debug().Str("tool", tool.Name).Strs("defaults", names).Msg("applying configured defaults")
	}
	merged := defaults.Apply(tool.Name, explicit)
	if len(opts) > 0 {
		known := make(map[string]bool, len(opts))
		for _, o := range opts {
			known[o.PropertyName] = true
		}
		for name := range merged {
			if _, given := explicit[name]; !given && !known[name] {
				zerolog.Ctx(ctx).Debug().Str("tool", tool.Name).Str("param", name).Msg("dropping default the tool does not declare")
				delete(merged, name)
			}
		}
	}

	if err := schema.CheckRequired(opts, merged); err != nil {
		return nil, fmt.Errorf("tool %s: %w", tool.Name, err)
	}
	return merged, nil
}
