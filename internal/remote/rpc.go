package remote

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"meetexport/internal/services"
	"meetexport/internal/textutil"
)

const (
	protocolVersion = "2025-03-26"
	sessionHeader   = "Mcp-Session-Id"
	maxBodyBytes    = 64 << 20
)

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	ID      *int64 `json:"id,omitempty"`
	Params  any    `json:"params,omitempty"`
}

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

type toolResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	IsError bool `json:"isError"`
}

// text joins every text content part with newlines.
func (r toolResult) text() string {
	parts := make([]string, 0, len(r.Content))
	for _, c := range r.Content {
		if c.Type == "text" {
			parts = append(parts, c.Text)
		}
	}
	return strings.Join(parts, "\n")
}

type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, summarize(e.Body))
}

// post sends one JSON-RPC message. The request outlives ctx cancellation and
// is bounded by timeout alone.
func (c *Client) post(ctx context.Context, msg rpcRequest, timeout time.Duration) ([]byte, http.Header, error) {
	encoded, err := json.Marshal(msg)
	if err != nil {
		return nil, nil, fmt.Errorf("encode %s: %w", msg.Method, err)
	}
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil, services.Cancelled(ctx)
	}

	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	if sid := c.currentSessionID(); sid != "" {
		req.Header.Set(sessionHeader, sid)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, services.Wrap(services.ErrTransient, "remote", msg.Method,
			fmt.Sprintf("http error (timeout=%s)", timeout), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, nil, services.Wrap(services.ErrTransient, "remote", msg.Method, "read body", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		statusErr := &httpStatusError{StatusCode: resp.StatusCode, Body: string(body)}
		switch resp.StatusCode {
		case http.StatusTooManyRequests:
			return nil, nil, services.Wrap(services.ErrRateLimited, "remote", msg.Method, "", statusErr)
		case http.StatusUnauthorized, http.StatusForbidden:
			return nil, nil, services.Wrap(services.ErrAuthRequired, "remote", msg.Method, "run `meetexport auth login`", statusErr)
		default:
			return nil, nil, services.Wrap(services.ErrTransient, "remote", msg.Method, "", statusErr)
		}
	}
	return body, resp.Header, nil
}

// call sends a request and decodes its result.
func (c *Client) call(ctx context.Context, method string, params any, timeout time.Duration) (json.RawMessage, error) {
	id := c.nextID()
	body, header, err := c.post(ctx, rpcRequest{JSONRPC: "2.0", Method: method, ID: &id, Params: params}, timeout)
	if err != nil {
		return nil, err
	}
	if sid := header.Get(sessionHeader); sid != "" {
		c.setSessionID(sid)
	}
	resp, err := decodeResponse(body, header.Get("Content-Type"))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "remote", method, "", err)
	}
	if resp.Error != nil {
		marker := services.ErrTransient
		if strings.Contains(strings.ToLower(resp.Error.Message), "rate limit") {
			marker = services.ErrRateLimited
		}
		return nil, services.Wrap(marker, "remote", method,
			fmt.Sprintf("mcp error %d: %s", resp.Error.Code, resp.Error.Message), nil)
	}
	return resp.Result, nil
}

// notify sends a JSON-RPC notification and ignores any reply body.
func (c *Client) notify(ctx context.Context, method string, timeout time.Duration) error {
	_, _, err := c.post(ctx, rpcRequest{JSONRPC: "2.0", Method: method}, timeout)
	return err
}

// decodeResponse extracts the first JSON-RPC message from an SSE stream, or
// decodes the body as a single JSON document.
func decodeResponse(body []byte, contentType string) (rpcResponse, error) {
	var resp rpcResponse
	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), maxBodyBytes)
	for scanner.Scan() {
		line := scanner.Text()
		payload, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		payload = strings.TrimSpace(payload)
		if payload == "" {
			continue
		}
		if err := json.Unmarshal([]byte(payload), &resp); err != nil {
			return resp, fmt.Errorf("decode event data: %w", err)
		}
		if resp.Result != nil || resp.Error != nil {
			return resp, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return resp, fmt.Errorf("scan event stream: %w", err)
	}

	trimmed := bytes.TrimSpace(body)
	if strings.HasPrefix(contentType, "application/json") || (len(trimmed) > 0 && trimmed[0] == '{') {
		if err := json.Unmarshal(trimmed, &resp); err != nil {
			return resp, fmt.Errorf("decode json response: %w", err)
		}
		return resp, nil
	}
	return resp, fmt.Errorf("unexpected response: %s", summarize(string(body)))
}

func summarize(body string) string {
	return textutil.Ellipsize(strings.TrimSpace(body), 200)
}
