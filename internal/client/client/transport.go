package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
)

// transport speaks JSON over HTTP to the backend gateway. Every request
// carries the anon key; authenticated ones add a bearer token.
type transport struct {
	baseURL *url.URL
	anonKey string
	http    *http.Client
}

type request struct {
	method string
	path   string
	query  url.Values
	body   any
	token  string
	header http.Header
}

func newTransport(baseURL, anonKey string, timeout time.Duration, hc *http.Client) (*transport, error) {
	if baseURL == "" || anonKey == "" {
		return nil, fmt.Errorf("%w: base url and anon key are required", ErrInvalidConfig)
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidConfig, u.Scheme)
	}
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	return &transport{baseURL: u, anonKey: anonKey, http: hc}, nil
}

func (t *transport) projectRef() string {
	return hostRef(t.baseURL)
}

// ProjectRef is the first label of the backend host. It namespaces the
// storage keys the same way the hosted SDKs do.
func ProjectRef(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("%w: base url %q has no host", ErrInvalidConfig, baseURL)
	}
	return hostRef(u), nil
}

func hostRef(u *url.URL) string {
	ref, _, _ := strings.Cut(u.Hostname(), ".")
	return ref
}

func (t *transport) endpoint(path string, query url.Values) string {
	u := *t.baseURL
	u.Path = u.Path + path
	u.RawQuery = query.Encode()
	return u.String()
}

func (t *transport) do(ctx context.Context, r request, out any) error {
	var body io.Reader
	if r.body != nil {
		b, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, t.endpoint(r.path, r.query), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	for k, vs := range r.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	token := r.token
	if token == "" {
		token = t.anonKey
	}
	req.Header.Set(common.APIKeyHeaderName, t.anonKey)
	req.Header.Set(common.AuthorizationHeaderName, "Bearer "+token)
	req.Header.Set(common.ClientInfoHeaderName, common.ClientInfo)
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := t.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, data)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorBody covers the shapes used by the identity API (old and new) and the
// data API.
type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Code             any    `json:"code"`
}

func decodeError(status int, data []byte) error {
	apiErr := &APIError{StatusCode: status}

	var eb errorBody
	if err := json.Unmarshal(data, &eb); err != nil {
		apiErr.Message = http.StatusText(status)
		return apiErr
	}

	for _, m := range []string{eb.Msg, eb.ErrorDescription, eb.Message, eb.Error} {
		if m != "" {
			apiErr.Message = m
			break
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}

	switch {
	case eb.ErrorCode != "":
		apiErr.Code = eb.ErrorCode
	case eb.ErrorDescription != "" && eb.Error != "":
		apiErr.Code = eb.Error
	default:
		if s, ok := eb.Code.(string); ok {
			apiErr.Code = s
		}
	}
	return apiErr
}

// isTransient reports failures worth retrying.
func isTransient(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
