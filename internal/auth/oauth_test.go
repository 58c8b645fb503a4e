package auth

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"meetexport/internal/services"
)

type fakeAuthServer struct {
	t *testing.T

	mu            sync.Mutex
	registrations int
	redirects     []string
	challenge     string
}

func (f *fakeAuthServer) start() *httptest.Server {
	mux := http.NewServeMux()
	var server *httptest.Server
	mux.HandleFunc("/.well-known/oauth-authorization-server", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Metadata{
			AuthorizationEndpoint: server.URL + "/authorize",
			TokenEndpoint:         server.URL + "/token",
			RegistrationEndpoint:  server.URL + "/register",
		})
	})
	mux.HandleFunc("/register", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			RedirectURIs []string `json:"redirect_uris"`
			AuthMethod   string   `json:"token_endpoint_auth_method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			f.t.Errorf("decode registration: %v", err)
		}
		if body.AuthMethod != "none" {
			f.t.Errorf("expected public client, got %q", body.AuthMethod)
		}
		f.mu.Lock()
		f.registrations++
		f.redirects = append(f.redirects, body.RedirectURIs...)
		n := f.registrations
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]string{"client_id": fmt.Sprintf("client-%d", n)})
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			f.t.Errorf("parse form: %v", err)
		}
		sum := sha256.Sum256([]byte(r.Form.Get("code_verifier")))
		f.mu.Lock()
		challenge := f.challenge
		f.mu.Unlock()
		if base64.RawURLEncoding.EncodeToString(sum[:]) != challenge {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		if r.Form.Get("code") != "auth-code" || r.Form.Get("grant_type") != "authorization_code" {
			http.Error(w, `{"error":"invalid_request"}`, http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"access-1","refresh_token":"refresh-1","expires_in":3600,"token_type":"Bearer"}`))
	})
	server = httptest.NewServer(mux)
	return server
}

// browser simulates the user approving access: it follows the redirect URI
// with the state from the authorization URL.
func (f *fakeAuthServer) browser(param string) func(string) error {
	return func(authURL string) error {
		parsed, err := url.Parse(authURL)
		if err != nil {
			return err
		}
		q := parsed.Query()
		if q.Get("code_challenge_method") != "S256" || q.Get("resource") != "https://mcp.example/" || q.Get("prompt") != "consent" {
			f.t.Errorf("unexpected authorization params %v", q)
		}
		f.mu.Lock()
		f.challenge = q.Get("code_challenge")
		f.mu.Unlock()
		go func() {
			resp, err := http.Get(q.Get("redirect_uri") + "?" + param + "&state=" + url.QueryEscape(q.Get("state")))
			if err == nil {
				resp.Body.Close()
			}
		}()
		return nil
	}
}

func newTestFlow(t *testing.T, f *fakeAuthServer, server *httptest.Server, store Store, port int, param string) *Flow {
	return NewFlow(LoginSettings{
		DiscoveryURL: server.URL + "/.well-known/oauth-authorization-server",
		Resource:     "https://mcp.example/",
		CallbackPort: port,
		Timeout:      5 * time.Second,
	}, store, WithFlowHTTPClient(server.Client()), WithBrowser(f.browser(param)))
}

func TestLoginRegistersAndExchangesCode(t *testing.T) {
	f := &fakeAuthServer{t: t}
	server := f.start()
	defer server.Close()
	store := &memoryStore{}

	creds, err := newTestFlow(t, f, server, store, 0, "code=auth-code").Login(context.Background())
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if creds.AccessToken != "access-1" || creds.RefreshToken != "refresh-1" || creds.ClientID != "client-1" {
		t.Fatalf("unexpected credentials %+v", creds)
	}
	if creds.TokenEndpoint != server.URL+"/token" {
		t.Fatalf("token endpoint not recorded: %q", creds.TokenEndpoint)
	}
	if store.creds != creds {
		t.Fatalf("credentials not persisted: %+v", store.creds)
	}
}

func TestLoginReusesRegistrationForSameRedirect(t *testing.T) {
	f := &fakeAuthServer{t: t}
	server := f.start()
	defer server.Close()

	port := freePort(t)
	redirect := fmt.Sprintf("http://localhost:%d/callback", port)
	store := &memoryStore{creds: Credentials{ClientID: "cached", RedirectURI: redirect}}

	creds, err := newTestFlow(t, f, server, store, port, "code=auth-code").Login(context.Background())
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if creds.ClientID != "cached" || f.registrations != 0 {
		t.Fatalf("expected cached registration, got client=%q registrations=%d", creds.ClientID, f.registrations)
	}
}

func TestLoginBusyPortForcesRegistration(t *testing.T) {
	f := &fakeAuthServer{t: t}
	server := f.start()
	defer server.Close()

	busy, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatal(err)
	}
	defer busy.Close()
	port := busy.Addr().(*net.TCPAddr).Port
	store := &memoryStore{creds: Credentials{ClientID: "cached", RedirectURI: fmt.Sprintf("http://localhost:%d/callback", port)}}

	creds, err := newTestFlow(t, f, server, store, port, "code=auth-code").Login(context.Background())
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if creds.ClientID != "client-1" {
		t.Fatalf("expected re-registration, got %q", creds.ClientID)
	}
	if creds.RedirectURI == fmt.Sprintf("http://localhost:%d/callback", port) {
		t.Fatal("redirect URI should use the fallback port")
	}
}

func TestLoginDenied(t *testing.T) {
	f := &fakeAuthServer{t: t}
	server := f.start()
	defer server.Close()

	_, err := newTestFlow(t, f, server, &memoryStore{}, 0, "error=access_denied").Login(context.Background())
	if !errors.Is(err, services.ErrAuthRequired) {
		t.Fatalf("expected ErrAuthRequired, got %v", err)
	}
}

func TestLoginCancelled(t *testing.T) {
	f := &fakeAuthServer{t: t}
	server := f.start()
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	flow := NewFlow(LoginSettings{
		DiscoveryURL: server.URL + "/.well-known/oauth-authorization-server",
		Timeout:      5 * time.Second,
	}, &memoryStore{}, WithFlowHTTPClient(server.Client()), WithBrowser(func(string) error {
		cancel()
		return nil
	}))

	if _, err := flow.Login(ctx); !errors.Is(err, services.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

func TestPKCEChallengeMatchesVerifier(t *testing.T) {
	verifier, challenge, err := pkcePair()
	if err != nil {
		t.Fatal(err)
	}
	if len(verifier) != 43 {
		t.Fatalf("unexpected verifier length %d", len(verifier))
	}
	sum := sha256.Sum256([]byte(verifier))
	if base64.RawURLEncoding.EncodeToString(sum[:]) != challenge {
		t.Fatal("challenge does not match verifier")
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatal(err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()
	return port
}
