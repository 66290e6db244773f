package cmd

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/thellimist/mcprobe/internal/config"
)

var appVersion = "dev"

func SetVersion(v string) {
	appVersion = v
}

var (
	flagConfig   string
	flagVerbose  bool
	flagQuiet    bool
	flagLogLevel string
	flagOutput   string
)

var (
	// cfg is loaded once per invocation by loadConfig.
	cfg *config.Config
	// runID tags the log lines and structured reports of one invocation.
	runID string
)

var rootCmd = &cobra.Command{
	Use:   "mcprobe",
	Short: "Probe MCP servers and provision Matrix test rooms",
	Long: `mcprobe talks JSON-RPC to MCP servers over HTTP+SSE, Streamable HTTP or
stdio, and sets up the Matrix accounts and rooms used to test them.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&flagConfig, "config", "", "path to the TOML config file (default $MCPROBE_CONFIG or ~/.config/mcprobe/config.toml)")
	f.BoolVarP(&flagVerbose, "verbose", "v", false, "show debug logs and tool parameters")
	f.BoolVarP(&flagQuiet, "quiet", "q", false, "suppress all output except results and errors")
	f.StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")
	f.StringVarP(&flagOutput, "output", "o", "text", "output format: text, json or yaml")

	rootCmd.AddCommand(probeCmd, toolsCmd, callCmd, matrixCmd)
	rootCmd.SetVersionTemplate(fmt.Sprintf("mcprobe v%s\n", appVersion))
}

func loadConfig(cmd *cobra.Command, args []string) error {
	switch flagOutput {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("--output must be text, json or yaml, got %q", flagOutput)
	}

	path, optional := flagConfig, false
	if path == "" {
		path, optional = config.DefaultPath(), true
	}
	c, err := config.Load(path, optional)
	if err != nil {
		return err
	}
	if flagLogLevel != "" {
		c.Logging.Level = flagLogLevel
	}
	if flagVerbose {
		c.Logging.Level = "debug"
	}
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Client.Version == "dev" {
		c.Client.Version = appVersion
	}
	cfg = c

	runID = uuid.NewString()
	logger := config.NewLogger(cmd.ErrOrStderr(), c.Logging.Level).
		With().Str("run_id", runID).Logger()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(logger.WithContext(ctx))
	return nil
}

func Execute() error {
	rootCmd.Version = appVersion
	return rootCmd.ExecuteContext(context.Background())
}
