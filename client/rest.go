package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vizit/utils"
)

// RestAPI implements API over HTTP+JSON.
type RestAPI struct {
	BaseURL string
	HTTP    *http.Client
	Tokens  *utils.TokenStore
	Logger  *zap.Logger
}

var _ API = (*RestAPI)(nil)

// NewRestAPI builds a client for the given base URL. The token store may be
// nil for unauthenticated use (availability browsing).
func NewRestAPI(baseURL string, httpClient *http.Client, tokens *utils.TokenStore) *RestAPI {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &RestAPI{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    httpClient,
		Tokens:  tokens,
		Logger:  utils.GetLogger(),
	}
}

// apiError is the wire shape of a non-2xx response body.
type apiError struct {
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// do issues one request and decodes the response into out (when non-nil).
// Non-2xx statuses are translated into the shared error taxonomy.
func (c *RestAPI) do(ctx context.Context, method, path string, body io.Reader, contentType string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return &utils.TransportError{Op: method + " " + path, Err: err}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.Tokens != nil {
		if token := c.Tokens.Access(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return &utils.TransportError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &utils.TransportError{Op: method + " " + path, Err: fmt.Errorf("decode response: %w", err)}
		}
		return nil
	}

	var payload apiError
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Message == "" {
		payload.Message = strings.TrimSpace(string(raw))
	}
	c.Logger.Debug("api request rejected",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.String("message", payload.Message))

	switch resp.StatusCode {
	case http.StatusNotFound:
		return &utils.NotFoundError{Resource: "resource", ID: path}
	case http.StatusUnauthorized:
		return &utils.AuthExpiredError{Message: payload.Message}
	case http.StatusConflict, http.StatusUnprocessableEntity:
		return &utils.ConflictError{Message: payload.Message}
	case http.StatusBadRequest:
		// Bad requests carry application-level rejections (own-service
		// booking, invalid transition wording). Kept as ConflictError so
		// callers surface them verbatim and never retry.
		return &utils.ConflictError{Message: payload.Message}
	default:
		return &utils.TransportError{Op: method + " " + path, Status: resp.StatusCode}
	}
}

func (c *RestAPI) getJSON(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, "", out)
}

func (c *RestAPI) sendJSON(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}
	return c.do(ctx, method, path, body, "application/json", out)
}
