package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"meetexport/internal/services"
	"meetexport/internal/textutil"
)

const (
	defaultExpiresIn = time.Hour
	requestTimeout   = 30 * time.Second
)

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// apply merges a token response into creds. A response without a refresh
// token keeps the previous one.
func (r tokenResponse) apply(creds Credentials, now time.Time) Credentials {
	expiresIn := time.Duration(r.ExpiresIn) * time.Second
	if expiresIn <= 0 {
		expiresIn = defaultExpiresIn
	}
	creds.AccessToken = r.AccessToken
	if r.RefreshToken != "" {
		creds.RefreshToken = r.RefreshToken
	}
	creds.TokenType = r.TokenType
	if creds.TokenType == "" {
		creds.TokenType = "Bearer"
	}
	creds.ExpiresAt = now.Add(expiresIn).UTC()
	return creds
}

// postForm sends a token endpoint request and decodes the response.
func postForm(ctx context.Context, client *http.Client, endpoint string, form url.Values) (tokenResponse, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return tokenResponse{}, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	var out tokenResponse
	if err := doJSON(client, req, &out); err != nil {
		return tokenResponse{}, err
	}
	if out.AccessToken == "" {
		return tokenResponse{}, errors.New("token endpoint returned no access_token")
	}
	return out, nil
}

func doJSON(client *http.Client, req *http.Request, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "auth", req.URL.Path, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return services.Wrap(services.ErrTransient, "auth", req.URL.Path, "read response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := fmt.Sprintf("%s returned %d: %s", req.URL.Host, resp.StatusCode, textutil.Ellipsize(strings.TrimSpace(string(body)), 200))
		if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
			return services.Wrap(services.ErrAuthRequired, "auth", req.URL.Path, detail, nil)
		}
		return services.Wrap(services.ErrTransient, "auth", req.URL.Path, detail, nil)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}
