package cmd

import (
	"github.com/spf13/cobra"
)

var flagTool string

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Connect, initialize, list tools and optionally call one",
	Long: `Run the whole MCP exchange against a server: connect, initialize, list
its tools and, with --tool, call one of them.

Examples:
  # HTTP+SSE server with the standard /sse and /messages paths
  mcprobe probe --url http://localhost:3456

  # Call a tool as part of the probe
  mcprobe probe --url http://localhost:3456 --tool echo --arg text=hello

  # Streamable HTTP with a bearer token, saved for next time
  mcprobe probe --http https://mcp.example.com/mcp --auth-token $TOKEN --save-credentials`,
	Args: cobra.NoArgs,
	RunE: runProbe,
}

func init() {
	addTransportFlags(probeCmd)
	addFilterFlags(probeCmd)
	addArgumentFlags(probeCmd)
	probeCmd.Flags().StringVar(&flagTool, "tool", "", "call this tool after listing")
}

type probeReport struct {
	RunID  string     `json:"run_id" yaml:"run_id"`
	Server serverView `json:"server" yaml:"server"`
	Tools  []toolView `json:"tools" yaml:"tools"`
	Call   *callView  `json:"call,omitempty" yaml:"call,omitempty"`
}

func runProbe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	p := newPrinter(cmd)

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.client.Close()
	p.status("%s connected to %s", green("✓"), s.target)

	tools, err := s.listTools(ctx)
	if err != nil {
		return err
	}
	tools, err = filterTools(tools)
	if err != nil {
		return err
	}
	views, err := newToolViews(tools, flagVerbose || p.structured())
	if err != nil {
		return err
	}
	report := probeReport{RunID: runID, Server: newServerView(s), Tools: views}

	if flagTool != "" {
		report.Call, err = callByName(ctx, s, flagTool)
		if err != nil {
			return err
		}
	}

	if p.structured() {
		return p.encode(report)
	}
	p.printServer(report.Server)
	p.printTools(report.Tools)
	if report.Call != nil {
		p.line("")
		p.printCall(report.Call)
	}
	return nil
}
