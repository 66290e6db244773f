package cmd

import (
	"github.com/spf13/cobra"

	"github.com/thellimist/mcprobe/internal/mcp"
	"github.com/thellimist/mcprobe/internal/toolfilter"
)

var (
	flagIncludeTools string
	flagExcludeTools string
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools an MCP server publishes",
	Long: `List the tools an MCP server publishes. With --verbose each tool's
parameters are listed from its input schema.

Examples:
  mcprobe tools --url http://localhost:3456
  mcprobe tools --http https://mcp.example.com/mcp --include-tools search,fetch
  mcprobe tools --stdio "npx @modelcontextprotocol/server-everything" -o json`,
	Args: cobra.NoArgs,
	RunE: runTools,
}

func init() {
	addTransportFlags(toolsCmd)
	addFilterFlags(toolsCmd)
}

func addFilterFlags(c *cobra.Command) {
	f := c.Flags()
	f.StringVar(&flagIncludeTools, "include-tools", "", "only include these tools (comma-separated)")
	f.StringVar(&flagExcludeTools, "exclude-tools", "", "exclude these tools (comma-separated)")
}

func runTools(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.client.Close()

	tools, err := s.listTools(ctx)
	if err != nil {
		return err
	}
	tools, err = filterTools(tools)
	if err != nil {
		return err
	}
	p := newPrinter(cmd)
	views, err := newToolViews(tools, flagVerbose || p.structured())
	if err != nil {
		return err
	}

	if p.structured() {
		return p.encode(views)
	}
	p.printServer(newServerView(s))
	p.printTools(views)
	return nil
}

// filterTools applies --include-tools/--exclude-tools, falling back to the
// configured lists.
func filterTools(tools []mcp.Tool) ([]mcp.Tool, error) {
	include := toolfilter.ParseToolList(flagIncludeTools)
	exclude := toolfilter.ParseToolList(flagExcludeTools)
	if len(include) == 0 && len(exclude) == 0 {
		include, exclude = cfg.Server.IncludeTools, cfg.Server.ExcludeTools
	}

	return toolfilter.Select(tools, func(t mcp.Tool) string { return t.Name }, include, exclude)
}
