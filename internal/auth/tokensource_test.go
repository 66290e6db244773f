package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
)

func TestClientCredentialsProvider(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "client_credentials" {
			t.Errorf("grant_type = %q, want client_credentials", got)
		}
		if got := r.PostForm.Get("scope"); got != "mcp:read mcp:write" {
			t.Errorf("scope = %q", got)
		}
		// x/oauth2 sends the client id either as basic auth or in the form.
		if user, _, _ := r.BasicAuth(); user != "probe" && r.PostForm.Get("client_id") != "probe" {
			t.Errorf("client id not sent (basic user %q)", user)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"cc-token","token_type":"bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	p, err := NewClientCredentialsProvider(context.Background(), Options{
		ClientID: "probe",
		TokenURL: srv.URL,
		Scopes:   []string{"mcp:read", "mcp:write"},
	})
	if err != nil {
		t.Fatalf("NewClientCredentialsProvider: %v", err)
	}

	for range 2 {
		headers, err := p.GetHeaders(context.Background())
		if err != nil {
			t.Fatalf("GetHeaders: %v", err)
		}
		if got := headers["Authorization"]; got != "Bearer cc-token" {
			t.Errorf("Authorization = %q, want %q", got, "Bearer cc-token")
		}
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("token endpoint called %d times, want 1 (token is cached)", n)
	}
}

func TestClientCredentialsProvider_TokenError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_client"}`))
	}))
	defer srv.Close()

	p, err := NewClientCredentialsProvider(context.Background(), Options{ClientID: "probe", TokenURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClientCredentialsProvider: %v", err)
	}
	if _, err := p.GetHeaders(context.Background()); err == nil {
		t.Fatal("expected error from token endpoint")
	}
}

func TestClientCredentialsProvider_MissingFields(t *testing.T) {
	if _, err := NewClientCredentialsProvider(context.Background(), Options{ClientID: "x"}); err == nil {
		t.Fatal("expected error without token_url")
	}
}

func TestGoogleServiceAccountProvider_MissingKeyFile(t *testing.T) {
	_, err := NewGoogleServiceAccountProvider(context.Background(), filepath.Join(t.TempDir(), "nonexistent.json"), nil)
	if err == nil {
		t.Fatal("expected error for missing key file")
	}
}

func TestGoogleServiceAccountProvider_InvalidKeyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad-key.json")
	if err := os.WriteFile(path, []byte("{not valid sa key}"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewGoogleServiceAccountProvider(context.Background(), path, nil); err == nil {
		t.Fatal("expected error for invalid key file")
	}
}

func TestGoogleServiceAccountProvider_NoKeyFile(t *testing.T) {
	if _, err := NewProvider(context.Background(), Options{Type: "google_service_account"}); err == nil {
		t.Fatal("expected error when key_file is empty")
	}
}
