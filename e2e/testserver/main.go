// Package main runs the mcprobe test MCP server over stdio, HTTP+SSE or
// Streamable HTTP. The e2e tests build it and point mcprobe at it.
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/thellimist/mcprobe/internal/testserver"
)

func main() {
	var transport, addr string

	cmd := &cobra.Command{
		Use:           "mcprobe-testserver",
		Short:         "Serve the mcprobe test tools over MCP",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := testserver.New()
			switch transport {
			case "stdio":
				return server.ServeStdio(s)
			case "sse":
				fmt.Fprintf(os.Stderr, "serving SSE on %s\n", addr)
				return server.NewSSEServer(s, server.WithMessageEndpoint("/messages")).Start(addr)
			case "http":
				fmt.Fprintf(os.Stderr, "serving Streamable HTTP on %s\n", addr)
				return server.NewStreamableHTTPServer(s).Start(addr)
			default:
				return fmt.Errorf("unknown transport %q (want stdio, sse or http)", transport)
			}
		},
	}
	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport to serve: stdio, sse or http")
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:3456", "Listen address for sse and http")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
