package cmd

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/thellimist/mcprobe/internal/auth"
	"github.com/thellimist/mcprobe/internal/config"
	"github.com/thellimist/mcprobe/internal/mcp"
	"github.com/thellimist/mcprobe/internal/nameutil"
)

var (
	flagURL             string
	flagHTTP            string
	flagStdio           string
	flagEnv             []string
	flagTimeout         int
	flagAuthType        string
	flagAuthToken       string
	flagSaveCredentials bool
)

func addTransportFlags(c *cobra.Command) {
	f := c.Flags()
	f.StringVar(&flagURL, "url", "", "base URL of an HTTP+SSE MCP server")
	f.StringVar(&flagHTTP, "http", "", "Streamable HTTP URL of an MCP server")
	f.StringVar(&flagStdio, "stdio", "", "shell command that spawns a local MCP server via stdin/stdout")
	f.StringSliceVar(&flagEnv, "env", nil, "environment variables for stdio servers (KEY=VALUE, repeatable)")
	f.IntVar(&flagTimeout, "timeout", 0, "timeout in milliseconds for each MCP exchange (default from config, 30000)")
	f.StringVar(&flagAuthType, "auth-type", "", "auth type: none, bearer, api_key, basic, oauth2_client_credentials, google_service_account")
	f.StringVar(&flagAuthToken, "auth-token", "", "token for bearer or api_key auth")
	f.BoolVar(&flagSaveCredentials, "save-credentials", false, "persist --auth-token to ~/.mcprobe/credentials.json")
	c.MarkFlagsMutuallyExclusive("url", "http", "stdio")
}

// session is an initialized connection to one MCP server.
type session struct {
	client  *mcp.Client
	target  string
	label   string
	timeout time.Duration
	info    *mcp.InitializeResult
}

// serverConfig overlays the transport flags on the configured server.
func serverConfig() (config.ServerConfig, error) {
	srv := cfg.Server
	switch {
	case flagURL != "":
		srv.URL, srv.HTTPURL, srv.Command = flagURL, "", ""
	case flagHTTP != "":
		srv.URL, srv.HTTPURL, srv.Command = "", flagHTTP, ""
	case flagStdio != "":
		srv.URL, srv.HTTPURL, srv.Command = "", "", flagStdio
	}
	if flagTimeout > 0 {
		srv.TimeoutMS = flagTimeout
	}
	if srv.TimeoutMS == 0 {
		srv.TimeoutMS = int(mcp.DefaultTimeout.Milliseconds())
	}
	srv.Env = append(append([]string(nil), srv.Env...), flagEnv...)
	if srv.URL == "" && srv.HTTPURL == "" && srv.Command == "" {
		return srv, errors.New("no MCP server given: use --url, --http or --stdio, or set [server] in the config file")
	}
	return srv, nil
}

func headerSource(ctx context.Context, serverURL string) (mcp.HeaderSource, error) {
	opts := cfg.Auth
	if flagAuthType != "" {
		opts.Type = flagAuthType
	}
	first := flagAuthToken
	if first == "" {
		first = opts.Token
	}
	token, savedType := auth.ResolveToken(first, serverURL)
	opts.Token = token
	if opts.Type == "" {
		opts.Type = savedType
	}
	if auth.NormalizeType(opts.Type) == auth.TypeNone && opts.Token != "" {
		opts.Type = auth.TypeBearer
	}

	if flagSaveCredentials && flagAuthToken != "" {
		path, err := auth.RememberToken(serverURL, opts.Type, flagAuthToken)
		if err != nil {
			return nil, fmt.Errorf("saving credentials: %w", err)
		}
		zerolog.Ctx(ctx).Info().Str("path", path).Msg("saved credentials")
	}
	return auth.NewProvider(ctx, opts)
}

func newTransport(ctx context.Context, srv config.ServerConfig) (mcp.Transport, string, bool, error) {
	timeout := srv.Timeout()

	if srv.Command != "" {
		if flagAuthToken != "" {
			zerolog.Ctx(ctx).Warn().Msg("--auth-token is ignored for stdio servers; use --env to pass credentials")
		}
		parts, err := nameutil.SplitCommand(srv.Command)
		if err != nil {
			return nil, "", false, fmt.Errorf("invalid --stdio command: %w", err)
		}
		inline, argv := nameutil.SplitEnv(parts)
		if len(argv) == 0 {
			return nil, "", false, errors.New("--stdio command is empty")
		}
		env := append(slices.Clone(srv.Env), inline...)
		return mcp.NewStdioTransport(argv[0], argv[1:], env), srv.Command, false, nil
	}

	target := srv.URL
	if target == "" {
		target = srv.HTTPURL
	}
	headers, err := headerSource(ctx, target)
	if err != nil {
		return nil, "", true, err
	}
	if srv.HTTPURL != "" {
		return mcp.NewHTTPTransport(srv.HTTPURL, headers), target, true, nil
	}
	t := mcp.NewSSETransport(srv.URL, headers)
	t.SSEPath = srv.SSEPath
	t.MessagesPath = srv.MessagesPath
	t.Timeout = timeout
	return t, target, true, nil
}

// openSession connects to the selected server and runs the initialize
// handshake. The caller closes the returned session's client.
func openSession(ctx context.Context) (*session, error) {
	srv, err := serverConfig()
	if err != nil {
		return nil, err
	}
	transport, target, isURL, err := newTransport(ctx, srv)
	if err != nil {
		return nil, err
	}

	s := &session{
		client:  mcp.NewClient(transport),
		target:  target,
		label:   nameutil.ServerLabel(target, isURL),
		timeout: srv.Timeout(),
	}
	log := zerolog.Ctx(ctx).With().Str("server", s.label).Logger()

	log.Debug().Str("target", target).Msg("connecting")
	cctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.client.Connect(cctx); err != nil {
		s.client.Close()
		return nil, s.describe(cctx, fmt.Errorf("failed to connect to MCP server at %s: %w", target, err))
	}

	log.Debug().Msg("performing MCP handshake")
	s.info, err = s.client.Initialize(cctx, cfg.Client.Name, cfg.Client.Version)
	if err != nil {
		s.client.Close()
		return nil, s.describe(cctx, fmt.Errorf("MCP server at %s did not complete initialization handshake: %w", target, err))
	}
	ev := log.Debug().Str("name", s.info.ServerInfo.Name).Str("version", s.info.ServerInfo.Version)
	switch t := transport.(type) {
	case *mcp.SSETransport:
		ev = ev.Str("endpoint", t.MessageEndpoint())
	case *mcp.HTTPTransport:
		ev = ev.Str("session_id", t.SessionID())
	}
	ev.Msg("handshake complete")
	return s, nil
}

func (s *session) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// describe replaces a context deadline error with a plain timeout message.
func (s *session) describe(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, mcp.ErrResponseTimeout) {
		return fmt.Errorf("MCP server did not respond within %dms: %w", s.timeout.Milliseconds(), err)
	}
	return err
}

func (s *session) listTools(ctx context.Context) ([]mcp.Tool, error) {
	cctx, cancel := s.withTimeout(ctx)
	defer cancel()
	tools, err := s.client.ListTools(cctx)
	if err != nil {
		return nil, s.describe(cctx, err)
	}
	return tools, nil
}

func (s *session) callTool(ctx context.Context, name string, args map[string]any) (*mcp.JSONRPCResponse, error) {
	cctx, cancel := s.withTimeout(ctx)
	defer cancel()
	resp, err := s.client.CallTool(cctx, name, args)
	if err != nil {
		return nil, s.describe(cctx, err)
	}
	return resp, nil
}
