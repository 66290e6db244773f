// Package auth resolves the headers mcprobe attaches to every request it
// makes to an MCP server, including the long-lived SSE GET, and remembers
// tokens between runs.
package auth

import (
	"context"
	"encoding/base64"
	"fmt"
	"maps"
	"strings"
)

// Canonical auth types.
const (
	TypeNone                 = "none"
	TypeBearer               = "bearer"
	TypeAPIKey               = "api_key"
	TypeBasic                = "basic"
	TypeClientCredentials    = "oauth2_client_credentials"
	TypeGoogleServiceAccount = "google_service_account"
)

const defaultAPIKeyHeader = "X-API-Key"

var typeAliases = map[string]string{
	"":                   TypeNone,
	"no_auth":            TypeNone,
	"bearer_token":       TypeBearer,
	"apikey":             TypeAPIKey,
	"basic_auth":         TypeBasic,
	"oauth2":             TypeClientCredentials,
	"client_credentials": TypeClientCredentials,
	"google":             TypeGoogleServiceAccount,
	"google_sa":          TypeGoogleServiceAccount,
}

// Provider yields the headers for one request. Token based providers may
// refresh on each call.
type Provider interface {
	GetHeaders(ctx context.Context) (map[string]string, error)
}

// Options selects and configures a Provider. It is decoded from the [auth]
// table of the config file and overridden by command line flags.
type Options struct {
	Type       string `toml:"type"`
	Token      string `toml:"token"`
	HeaderName string `toml:"header_name"`
	Username   string `toml:"username"`
	Password   string `toml:"password"`

	ClientID     string   `toml:"client_id"`
	ClientSecret string   `toml:"client_secret"`
	TokenURL     string   `toml:"token_url"`
	Scopes       []string `toml:"scopes"`

	// KeyFile is a Google service account JSON key.
	KeyFile string `toml:"key_file"`
}

// NormalizeType maps the accepted spellings of an auth type to one of the
// Type constants. Unknown names come back lower-cased.
func NormalizeType(authType string) string {
	t := strings.ToLower(strings.TrimSpace(authType))
	if canonical, ok := typeAliases[t]; ok {
		return canonical
	}
	return t
}

// KnownType reports whether NewProvider accepts authType.
func KnownType(authType string) bool {
	switch NormalizeType(authType) {
	case TypeNone, TypeBearer, TypeAPIKey, TypeBasic, TypeClientCredentials, TypeGoogleServiceAccount:
		return true
	}
	return false
}

// Headers is a fixed set of headers. The nil value sends none.
type Headers map[string]string

func (h Headers) GetHeaders(context.Context) (map[string]string, error) {
	return maps.Clone(h), nil
}

// Bearer sends "Authorization: Bearer <token>", or nothing for an empty token.
func Bearer(token string) Headers {
	if token == "" {
		return nil
	}
	return Headers{"Authorization": "Bearer " + token}
}

// APIKey sends token in header, X-API-Key when header is empty.
func APIKey(header, token string) Headers {
	if token == "" {
		return nil
	}
	if header == "" {
		header = defaultAPIKeyHeader
	}
	return Headers{header: token}
}

func Basic(username, password string) Headers {
	if username == "" && password == "" {
		return nil
	}
	creds := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
	return Headers{"Authorization": "Basic " + creds}
}

// NewProvider builds the Provider named by opts.Type.
func NewProvider(ctx context.Context, opts Options) (Provider, error) {
	switch NormalizeType(opts.Type) {
	case TypeNone:
		return Headers(nil), nil
	case TypeBearer:
		return Bearer(opts.Token), nil
	case TypeAPIKey:
		return APIKey(opts.HeaderName, opts.Token), nil
	case TypeBasic:
		return Basic(opts.Username, opts.Password), nil
	case TypeClientCredentials:
		return NewClientCredentialsProvider(ctx, opts)
	case TypeGoogleServiceAccount:
		return NewGoogleServiceAccountProvider(ctx, opts.KeyFile, opts.Scopes)
	default:
		return nil, fmt.Errorf("unknown auth type: %q", opts.Type)
	}
}
