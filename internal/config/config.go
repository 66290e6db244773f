// Package config loads the mcprobe TOML file. ${VAR} references in the file
// are expanded from the environment before decoding, and MCPROBE_* variables
// override individual settings afterwards.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joeshaw/envdecode"

	"github.com/thellimist/mcprobe/internal/auth"
	"github.com/thellimist/mcprobe/internal/toolargs"
)

type Config struct {
	Server   ServerConfig      `toml:"server"`
	Auth     auth.Options      `toml:"auth"`
	Client   ClientConfig      `toml:"client"`
	Defaults toolargs.Defaults `toml:"defaults"`
	Matrix   MatrixConfig      `toml:"matrix"`
	Logging  LoggingConfig     `toml:"logging"`
}

// ServerConfig selects the MCP server to probe. At most one of URL, HTTPURL
// and Command may be set.
type ServerConfig struct {
	// URL is the base of an HTTP+SSE server.
	URL          string `toml:"url"`
	SSEPath      string `toml:"sse_path"`
	MessagesPath string `toml:"messages_path"`
	// HTTPURL is a Streamable HTTP endpoint.
	HTTPURL string `toml:"http_url"`
	// Command is a stdio server command line.
	Command string   `toml:"command"`
	Env     []string `toml:"env"`

	TimeoutMS    int      `toml:"timeout_ms"`
	IncludeTools []string `toml:"include_tools"`
	ExcludeTools []string `toml:"exclude_tools"`
}

type ClientConfig struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// MatrixConfig drives the provisioning commands. Secrets belong in the
// environment and are usually referenced as ${VAR} from the file.
type MatrixConfig struct {
	Homeserver string `toml:"homeserver"`
	// ServerName is the domain part of user ids. Defaults to the
	// homeserver host name.
	ServerName string `toml:"server_name"`

	RegistrationSecret string `toml:"registration_secret"`
	AdminUser          string `toml:"admin_user"`
	AdminPassword      string `toml:"admin_password"`
	AdminToken         string `toml:"admin_token"`

	BotUsername    string `toml:"bot_username"`
	BotPassword    string `toml:"bot_password"`
	BotDisplayName string `toml:"bot_display_name"`
	BotAdmin       bool   `toml:"bot_admin"`

	RoomName  string `toml:"room_name"`
	RoomAlias string `toml:"room_alias"`
	RoomTopic string `toml:"room_topic"`

	// OutputDir receives bot config and room info files.
	OutputDir string `toml:"output_dir"`
}

type LoggingConfig struct {
	Level string `toml:"level"`
}

// envOverrides lists the environment variables that override the file.
type envOverrides struct {
	URL       string `env:"MCPROBE_URL"`
	HTTPURL   string `env:"MCPROBE_HTTP_URL"`
	Command   string `env:"MCPROBE_STDIO"`
	TimeoutMS int    `env:"MCPROBE_TIMEOUT_MS"`
	AuthType  string `env:"MCPROBE_AUTH_TYPE"`
	AuthToken string `env:"MCPROBE_AUTH_TOKEN"`
	LogLevel  string `env:"MCPROBE_LOG_LEVEL"`

	MatrixHomeserver         string `env:"MCPROBE_MATRIX_HOMESERVER"`
	MatrixServerName         string `env:"MCPROBE_MATRIX_SERVER_NAME"`
	MatrixRegistrationSecret string `env:"MCPROBE_MATRIX_REGISTRATION_SECRET"`
	MatrixAdminUser          string `env:"MCPROBE_MATRIX_ADMIN_USER"`
	MatrixAdminPassword      string `env:"MCPROBE_MATRIX_ADMIN_PASSWORD"`
	MatrixAdminToken         string `env:"MCPROBE_MATRIX_ADMIN_TOKEN"`
	MatrixBotUsername        string `env:"MCPROBE_MATRIX_BOT_USERNAME"`
	MatrixBotPassword        string `env:"MCPROBE_MATRIX_BOT_PASSWORD"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			SSEPath:      "/sse",
			MessagesPath: "/messages",
			TimeoutMS:    30000,
		},
		Client: ClientConfig{
			Name:    "mcprobe",
			Version: "dev",
		},
		Matrix: MatrixConfig{
			Homeserver: "http://localhost:8008",
			RoomName:   "MCP Test Room",
			RoomAlias:  "mcp-test",
			RoomTopic:  "Test room for MCP Matrix integration",
			OutputDir:  ".",
		},
		Logging: LoggingConfig{Level: "warn"},
	}
}

// DefaultPath returns $MCPROBE_CONFIG, else $XDG_CONFIG_HOME/mcprobe/config.toml,
// else ~/.config/mcprobe/config.toml.
func DefaultPath() string {
	if p := os.Getenv("MCPROBE_CONFIG"); p != "" {
		return p
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "mcprobe", "config.toml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "mcprobe", "config.toml")
}

// Load reads config from path on top of Default, then applies environment
// overrides and validates the result. A missing file is not an error when
// optional is true.
func Load(path string, optional bool) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			expanded := expandEnvVars(string(data))
			if _, err := toml.Decode(expanded, cfg); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist) && optional:
		default:
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} with environment variable values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}"))
	})
}

func (c *Config) applyEnv() error {
	var env envOverrides
	if err := envdecode.Decode(&env); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return fmt.Errorf("decoding environment: %w", err)
	}

	setString(&c.Server.URL, env.URL)
	setString(&c.Server.HTTPURL, env.HTTPURL)
	setString(&c.Server.Command, env.Command)
	if env.TimeoutMS > 0 {
		c.Server.TimeoutMS = env.TimeoutMS
	}
	setString(&c.Auth.Type, env.AuthType)
	setString(&c.Auth.Token, env.AuthToken)
	setString(&c.Logging.Level, env.LogLevel)

	setString(&c.Matrix.Homeserver, env.MatrixHomeserver)
	setString(&c.Matrix.ServerName, env.MatrixServerName)
	setString(&c.Matrix.RegistrationSecret, env.MatrixRegistrationSecret)
	setString(&c.Matrix.AdminUser, env.MatrixAdminUser)
	setString(&c.Matrix.AdminPassword, env.MatrixAdminPassword)
	setString(&c.Matrix.AdminToken, env.MatrixAdminToken)
	setString(&c.Matrix.BotUsername, env.MatrixBotUsername)
	setString(&c.Matrix.BotPassword, env.MatrixBotPassword)
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Validate checks field formats. Whether a server or Matrix credentials are
// present at all is checked by the command that needs them.
func (c *Config) Validate() error {
	set := 0
	for _, v := range []string{c.Server.URL, c.Server.HTTPURL, c.Server.Command} {
		if v != "" {
			set++
		}
	}
	if set > 1 {
		return fmt.Errorf("server: only one of url, http_url and command may be set")
	}
	if err := validateHTTPURL("server.url", c.Server.URL); err != nil {
		return err
	}
	if err := validateHTTPURL("server.http_url", c.Server.HTTPURL); err != nil {
		return err
	}
	if c.Server.TimeoutMS < 0 {
		return fmt.Errorf("server.timeout_ms must not be negative")
	}
	if len(c.Server.IncludeTools) > 0 && len(c.Server.ExcludeTools) > 0 {
		return fmt.Errorf("server: include_tools and exclude_tools cannot be used together")
	}
	if !auth.KnownType(c.Auth.Type) {
		return fmt.Errorf("auth.type %q is not supported", c.Auth.Type)
	}
	if err := c.Defaults.Validate(); err != nil {
		return err
	}
	if err := validateHTTPURL("matrix.homeserver", c.Matrix.Homeserver); err != nil {
		return err
	}
	if _, err := parseLevel(c.Logging.Level); err != nil {
		return err
	}
	return nil
}

func validateHTTPURL(field, raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https scheme", field)
	}
	if u.Host == "" {
		return fmt.Errorf("%s has no host", field)
	}
	return nil
}

// Timeout returns the per-call timeout.
func (s ServerConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutMS) * time.Millisecond
}

// MatrixServerName returns the configured server name or the homeserver
// host name.
func (c *Config) MatrixServerName() string {
	if c.Matrix.ServerName != "" {
		return c.Matrix.ServerName
	}
	u, err := url.Parse(c.Matrix.Homeserver)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
