package auth

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"meetexport/internal/logging"
	"meetexport/internal/services"
)

const (
	defaultScope        = "email offline_access openid profile"
	defaultClientName   = "meetexport"
	defaultLoginTimeout = 5 * time.Minute
	callbackPath        = "/callback"
)

// Metadata is the subset of the authorization server metadata used here.
type Metadata struct {
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	RegistrationEndpoint  string `json:"registration_endpoint"`
}

// LoginSettings configures the authorization code flow.
type LoginSettings struct {
	DiscoveryURL string
	Resource     string
	CallbackPort int
	ClientName   string
	Scope        string
	Timeout      time.Duration
}

// Flow performs interactive logins.
type Flow struct {
	settings   LoginSettings
	store      Store
	httpClient *http.Client
	logger     *slog.Logger
	open       func(authURL string) error
	now        func() time.Time
}

// FlowOption customizes a Flow.
type FlowOption func(*Flow)

// WithFlowHTTPClient overrides the client used for discovery, registration
// and token exchange.
func WithFlowHTTPClient(client *http.Client) FlowOption {
	return func(f *Flow) {
		if client != nil {
			f.httpClient = client
		}
	}
}

// WithFlowLogger sets the logger.
func WithFlowLogger(logger *slog.Logger) FlowOption {
	return func(f *Flow) { f.logger = logging.NewComponentLogger(logger, "auth") }
}

// WithBrowser sets the function that presents the authorization URL to the
// user, typically by printing it and launching a browser.
func WithBrowser(open func(authURL string) error) FlowOption {
	return func(f *Flow) {
		if open != nil {
			f.open = open
		}
	}
}

// NewFlow builds a login flow persisting into store.
func NewFlow(settings LoginSettings, store Store, opts ...FlowOption) *Flow {
	if settings.ClientName == "" {
		settings.ClientName = defaultClientName
	}
	if settings.Scope == "" {
		settings.Scope = defaultScope
	}
	if settings.Timeout <= 0 {
		settings.Timeout = defaultLoginTimeout
	}
	f := &Flow{
		settings:   settings,
		store:      store,
		httpClient: &http.Client{},
		logger:     logging.NewComponentLogger(nil, "auth"),
		open:       func(string) error { return nil },
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Login runs the full flow and persists the resulting tokens.
func (f *Flow) Login(ctx context.Context) (Credentials, error) {
	meta, err := f.discover(ctx)
	if err != nil {
		return Credentials{}, err
	}
	creds, err := f.store.Load()
	if err != nil {
		return Credentials{}, err
	}

	listener, creds, err := f.listen(creds)
	if err != nil {
		return Credentials{}, err
	}
	port := listener.Addr().(*net.TCPAddr).Port
	redirectURI := fmt.Sprintf("http://localhost:%d%s", port, callbackPath)

	creds, err = f.register(ctx, meta, creds, redirectURI)
	if err != nil {
		listener.Close()
		return Credentials{}, err
	}

	verifier, challenge, err := pkcePair()
	if err != nil {
		listener.Close()
		return Credentials{}, err
	}
	state := uuid.NewString()

	results := make(chan callbackResult, 1)
	server := &http.Server{Handler: callbackHandler(state, results), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			f.logger.Debug("callback server stopped", logging.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	authURL := f.authorizationURL(meta, creds.ClientID, redirectURI, challenge, state)
	f.logger.Info("waiting for authorization", logging.String("redirect_uri", redirectURI))
	if err := f.open(authURL); err != nil {
		logging.WarnWithContext(f.logger, "could not open browser", "browser_open_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "open the printed URL manually"),
		)
	}

	var result callbackResult
	select {
	case <-ctx.Done():
		return Credentials{}, services.Cancelled(ctx)
	case <-time.After(f.settings.Timeout):
		return Credentials{}, services.Wrap(services.ErrAuthRequired, "auth", "login", "timed out waiting for the browser callback", nil)
	case result = <-results:
	}
	if result.err != nil {
		return Credentials{}, result.err
	}

	resp, err := postForm(ctx, f.httpClient, meta.TokenEndpoint, url.Values{
		"client_id":     {creds.ClientID},
		"code":          {result.code},
		"code_verifier": {verifier},
		"grant_type":    {"authorization_code"},
		"redirect_uri":  {redirectURI},
	})
	if err != nil {
		return Credentials{}, err
	}
	creds.TokenEndpoint = meta.TokenEndpoint
	creds = resp.apply(creds, f.now())
	if err := f.store.Save(creds); err != nil {
		return Credentials{}, err
	}
	f.logger.Info("login complete", logging.Time("expires_at", creds.ExpiresAt))
	return creds, nil
}

func (f *Flow) discover(ctx context.Context) (Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.settings.DiscoveryURL, nil)
	if err != nil {
		return Metadata{}, services.Wrap(services.ErrConfiguration, "auth", "discover", "invalid discovery url", err)
	}
	req.Header.Set("Accept", "application/json")
	var meta Metadata
	if err := doJSON(f.httpClient, req, &meta); err != nil {
		return Metadata{}, err
	}
	if meta.AuthorizationEndpoint == "" || meta.TokenEndpoint == "" {
		return Metadata{}, services.Wrap(services.ErrConfiguration, "auth", "discover", "metadata lacks authorization or token endpoint", nil)
	}
	f.logger.Debug("oauth endpoints discovered",
		logging.String("authorize", meta.AuthorizationEndpoint),
		logging.String("token", meta.TokenEndpoint),
		logging.String("register", meta.RegistrationEndpoint),
	)
	return meta, nil
}

// listen binds the fixed callback port, or any free port when it is taken.
// A different port means a different redirect URI, so the cached client
// registration is dropped.
func (f *Flow) listen(creds Credentials) (net.Listener, Credentials, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", f.settings.CallbackPort))
	if err == nil {
		return listener, creds, nil
	}
	logging.WarnWithContext(f.logger, "callback port in use; using a free port", "callback_port_busy",
		logging.Int("port", f.settings.CallbackPort),
		logging.Error(err),
		logging.String(logging.FieldImpact, "client will be registered again"),
	)
	listener, err = net.Listen("tcp", "localhost:0")
	if err != nil {
		return nil, creds, fmt.Errorf("listen for oauth callback: %w", err)
	}
	creds.ClientID = ""
	creds.RedirectURI = ""
	if err := f.store.Save(creds); err != nil {
		listener.Close()
		return nil, creds, err
	}
	return listener, creds, nil
}

func (f *Flow) register(ctx context.Context, meta Metadata, creds Credentials, redirectURI string) (Credentials, error) {
	if creds.ClientID != "" && creds.RedirectURI == redirectURI {
		f.logger.Debug("reusing client registration", logging.String("client_id", creds.ClientID))
		return creds, nil
	}
	if meta.RegistrationEndpoint == "" {
		return creds, services.Wrap(services.ErrConfiguration, "auth", "register",
			"authorization server does not support dynamic client registration", nil)
	}

	body, err := json.Marshal(map[string]any{
		"client_name":                f.settings.ClientName,
		"redirect_uris":              []string{redirectURI},
		"grant_types":                []string{"authorization_code", "refresh_token"},
		"response_types":             []string{"code"},
		"token_endpoint_auth_method": "none",
	})
	if err != nil {
		return creds, fmt.Errorf("encode registration: %w", err)
	}
	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, meta.RegistrationEndpoint, bytes.NewReader(body))
	if err != nil {
		return creds, fmt.Errorf("build registration request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	var out struct {
		ClientID string `json:"client_id"`
	}
	if err := doJSON(f.httpClient, req, &out); err != nil {
		return creds, err
	}
	if out.ClientID == "" {
		return creds, errors.New("registration returned no client_id")
	}
	creds.ClientID = out.ClientID
	creds.RedirectURI = redirectURI
	if err := f.store.Save(creds); err != nil {
		return creds, err
	}
	f.logger.Info("client registered", logging.String("client_id", out.ClientID))
	return creds, nil
}

func (f *Flow) authorizationURL(meta Metadata, clientID, redirectURI, challenge, state string) string {
	params := url.Values{
		"client_id":             {clientID},
		"redirect_uri":          {redirectURI},
		"response_type":         {"code"},
		"code_challenge":        {challenge},
		"code_challenge_method": {"S256"},
		"scope":                 {f.settings.Scope},
		"prompt":                {"consent"},
		"state":                 {state},
	}
	if f.settings.Resource != "" {
		params.Set("resource", f.settings.Resource)
	}
	sep := "?"
	if strings.Contains(meta.AuthorizationEndpoint, "?") {
		sep = "&"
	}
	return meta.AuthorizationEndpoint + sep + params.Encode()
}

// pkcePair returns an S256 code verifier and its challenge.
func pkcePair() (string, string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate pkce verifier: %w", err)
	}
	verifier := base64.RawURLEncoding.EncodeToString(buf)
	sum := sha256.Sum256([]byte(verifier))
	return verifier, base64.RawURLEncoding.EncodeToString(sum[:]), nil
}

type callbackResult struct {
	code string
	err  error
}

const callbackPage = `<html><body style="font-family: sans-serif; text-align: center; padding: 50px;"><h1>%s</h1><p>%s</p></body></html>`

func callbackHandler(state string, results chan<- callbackResult) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		var result callbackResult
		switch {
		case query.Get("error") != "":
			result.err = services.Wrap(services.ErrAuthRequired, "auth", "callback",
				fmt.Sprintf("authorization denied: %s", query.Get("error")), nil)
		case query.Get("state") != state:
			result.err = services.Wrap(services.ErrAuthRequired, "auth", "callback", "state mismatch", nil)
		case query.Get("code") == "":
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		default:
			result.code = query.Get("code")
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if result.err != nil {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, callbackPage, "Authentication Failed", html.EscapeString(result.err.Error()))
		} else {
			fmt.Fprintf(w, callbackPage, "Authentication Successful", "You can close this window and return to the terminal.")
		}
		select {
		case results <- result:
		default:
		}
	})
	return mux
}
