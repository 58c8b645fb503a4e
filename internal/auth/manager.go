package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"meetexport/internal/logging"
	"meetexport/internal/services"
)

// RefreshLeeway is how long before expiry the access token is renewed.
const RefreshLeeway = 60 * time.Second

// Manager hands out valid access tokens, refreshing through the token
// endpoint recorded at login.
type Manager struct {
	store      Store
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time

	mu     sync.Mutex
	creds  Credentials
	loaded bool
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithHTTPClient overrides the HTTP client used for refresh requests.
func WithHTTPClient(client *http.Client) ManagerOption {
	return func(m *Manager) {
		if client != nil {
			m.httpClient = client
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logging.NewComponentLogger(logger, "auth") }
}

// WithNow overrides the clock.
func WithNow(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager returns a Manager reading credentials from store.
func NewManager(store Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:      store,
		httpClient: &http.Client{},
		logger:     logging.NewComponentLogger(nil, "auth"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AccessToken returns a token valid for at least RefreshLeeway, refreshing
// and persisting new tokens when needed.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.loadLocked(); err != nil {
		return "", err
	}
	if m.creds.AccessToken == "" {
		return "", services.Wrap(services.ErrAuthRequired, "auth", "token", "not logged in; run `meetexport auth login`", nil)
	}
	if m.now().Before(m.creds.ExpiresAt.Add(-RefreshLeeway)) {
		return m.creds.AccessToken, nil
	}
	if err := m.refreshLocked(ctx); err != nil {
		return "", err
	}
	return m.creds.AccessToken, nil
}

func (m *Manager) loadLocked() error {
	if m.loaded {
		return nil
	}
	creds, err := m.store.Load()
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "auth", "load", "", err)
	}
	m.creds = creds
	m.loaded = true
	return nil
}

func (m *Manager) refreshLocked(ctx context.Context) error {
	if m.creds.RefreshToken == "" {
		return services.Wrap(services.ErrAuthRequired, "auth", "refresh", "access token expired and no refresh token stored; run `meetexport auth login`", nil)
	}
	if m.creds.ClientID == "" || m.creds.TokenEndpoint == "" {
		return services.Wrap(services.ErrAuthRequired, "auth", "refresh", "client registration missing; run `meetexport auth login`", nil)
	}

	m.logger.Info("refreshing access token", logging.Time("expired_at", m.creds.ExpiresAt))
	resp, err := postForm(ctx, m.httpClient, m.creds.TokenEndpoint, url.Values{
		"client_id":     {m.creds.ClientID},
		"grant_type":    {"refresh_token"},
		"refresh_token": {m.creds.RefreshToken},
	})
	if err != nil {
		return err
	}
	updated := resp.apply(m.creds, m.now())
	if err := m.store.Save(updated); err != nil {
		return services.Wrap(services.ErrConfiguration, "auth", "save", "persist refreshed tokens", err)
	}
	m.creds = updated
	m.logger.Info("access token refreshed", logging.Time("expires_at", updated.ExpiresAt))
	return nil
}

// SetTokens records a fresh login.
func (m *Manager) SetTokens(creds Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.Save(creds); err != nil {
		return err
	}
	m.creds = creds
	m.loaded = true
	return nil
}

// Logout removes stored tokens. The client registration is kept so the next
// login can reuse it.
func (m *Manager) Logout() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.loadLocked(); err != nil {
		return err
	}
	cleared := m.creds.ClearTokens()
	if err := m.store.Save(cleared); err != nil {
		return err
	}
	m.creds = cleared
	m.logger.Info("tokens cleared")
	return nil
}

// Status summarizes the stored session.
type Status struct {
	LoggedIn        bool      `json:"logged_in"`
	Email           string    `json:"email,omitempty"`
	ExpiresAt       time.Time `json:"expires_at,omitzero"`
	AccessExpired   bool      `json:"access_expired"`
	HasRefreshToken bool      `json:"has_refresh_token"`
	ClientID        string    `json:"client_id,omitempty"`
}

// Status reports the stored session without contacting the server.
func (m *Manager) Status() (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.loadLocked(); err != nil {
		return Status{}, err
	}
	c := m.creds
	return Status{
		LoggedIn:        c.HasTokens(),
		Email:           tokenEmail(c.AccessToken),
		ExpiresAt:       c.ExpiresAt,
		AccessExpired:   c.AccessToken != "" && !m.now().Before(c.ExpiresAt),
		HasRefreshToken: c.RefreshToken != "",
		ClientID:        c.ClientID,
	}, nil
}

// tokenEmail reads the email claim of a JWT for display. The signature is
// not checked.
func tokenEmail(token string) string {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return ""
	}
	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return ""
	}
	var claims struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return ""
	}
	return claims.Email
}
