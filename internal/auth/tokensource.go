package auth

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/oauth2/google"
)

const defaultGoogleScope = "https://www.googleapis.com/auth/cloud-platform"

// TokenSourceProvider turns an oauth2.TokenSource into Authorization headers.
// The token source caches and refreshes tokens on its own.
type TokenSourceProvider struct {
	Source oauth2.TokenSource
	// Name prefixes token errors, e.g. "oauth2 client credentials".
	Name string
}

func (p *TokenSourceProvider) GetHeaders(_ context.Context) (map[string]string, error) {
	token, err := p.Source.Token()
	if err != nil {
		return nil, fmt.Errorf("%s token: %w", p.Name, err)
	}
	return map[string]string{"Authorization": token.Type() + " " + token.AccessToken}, nil
}

// NewClientCredentialsProvider uses the OAuth2 client_credentials grant
// (RFC 6749 section 4.4) against opts.TokenURL.
func NewClientCredentialsProvider(ctx context.Context, opts Options) (*TokenSourceProvider, error) {
	if opts.ClientID == "" || opts.TokenURL == "" {
		return nil, errors.New("oauth2 client credentials: client_id and token_url are required")
	}
	cfg := &clientcredentials.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		TokenURL:     opts.TokenURL,
		Scopes:       opts.Scopes,
	}
	return &TokenSourceProvider{
		Source: cfg.TokenSource(context.WithoutCancel(ctx)),
		Name:   "oauth2 client credentials",
	}, nil
}

// NewGoogleServiceAccountProvider signs tokens with a Google service account
// JSON key file.
func NewGoogleServiceAccountProvider(ctx context.Context, keyFile string, scopes []string) (*TokenSourceProvider, error) {
	if keyFile == "" {
		return nil, errors.New("google service account: key_file is required")
	}
	keyData, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("read service account key file %s: %w", keyFile, err)
	}
	if len(scopes) == 0 {
		scopes = []string{defaultGoogleScope}
	}
	creds, err := google.CredentialsFromJSON(context.WithoutCancel(ctx), keyData, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse service account key: %w", err)
	}
	return &TokenSourceProvider{Source: creds.TokenSource, Name: "google service account"}, nil
}
