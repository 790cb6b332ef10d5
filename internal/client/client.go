package client

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/oklog/ulid/v2"
	"github.com/uofuseismo/cct-review/internal/auth"
	"github.com/uofuseismo/cct-review/pkg/models"
)

var (
	// ErrNetwork covers transport failures and non-2xx responses.
	ErrNetwork = errors.New("network error")
	// ErrData means a response was missing or had malformed fields.
	ErrData = errors.New("malformed response")
)

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode  int
	RequestType string
	Body        string
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("%s request failed with status %d", e.RequestType, e.StatusCode)
	}
	return fmt.Sprintf("%s request failed with status %d: %s", e.RequestType, e.StatusCode, body)
}

func (e *APIError) Unwrap() error { return ErrNetwork }

// TokenSource hands out a bearer token that is safe to send.
// auth.Holder implements it and logs out when the token has expired.
type TokenSource interface {
	CheckToken() (string, error)
}

type CCTClient struct {
	HTTP   *resty.Client
	Config ClientConfig
	Tokens TokenSource
}

type ClientConfig struct {
	Endpoint    string
	Timeout     time.Duration
	InsecureTLS bool
	Debug       bool
}

func New(cfg ClientConfig, tokens TokenSource) *CCTClient {
	r := resty.New()
	r.SetHeader("Content-Type", "application/json")
	r.SetHeader("Accept", "application/json")
	// The service closes every connection after responding.
	r.SetHeader("Connection", "close")
	if cfg.Timeout > 0 {
		r.SetTimeout(cfg.Timeout)
	}
	if cfg.InsecureTLS {
		r.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	r.SetDebug(cfg.Debug)

	return &CCTClient{
		HTTP:   r,
		Config: cfg,
		Tokens: tokens,
	}
}

// bearer returns the Authorization header for an authenticated request.
// It fails before anything is sent when the token has expired.
func (c *CCTClient) bearer() (string, error) {
	if c.Tokens == nil {
		return "", auth.ErrNotLoggedIn
	}
	token, err := c.Tokens.CheckToken()
	if err != nil {
		return "", err
	}
	return "Bearer " + token, nil
}

// send issues one request against the single CCT endpoint and decodes the
// JSON response into out.
func (c *CCTClient) send(ctx context.Context, method, authorization string, body *models.APIRequest, out any) error {
	requestType := "login"
	if body != nil {
		requestType = body.RequestType
	}

	req := c.HTTP.R().
		SetContext(ctx).
		SetHeader("Authorization", authorization).
		SetHeader("X-Request-ID", ulid.Make().String())
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, c.Config.Endpoint)
	if err != nil {
		return fmt.Errorf("%w: %s request: %w", ErrNetwork, requestType, err)
	}
	if !resp.IsSuccess() {
		return &APIError{StatusCode: resp.StatusCode(), RequestType: requestType, Body: resp.String()}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("%w: %s response: %w", ErrData, requestType, err)
	}
	return nil
}

// authed sends an authenticated request built from the given body.
func (c *CCTClient) authed(ctx context.Context, method string, body models.APIRequest, out any) error {
	authorization, err := c.bearer()
	if err != nil {
		return err
	}
	return c.send(ctx, method, authorization, &body, out)
}

// IsAuthError reports whether err means the caller must log in again.
func IsAuthError(err error) bool {
	if errors.Is(err, auth.ErrAuthExpired) || errors.Is(err, auth.ErrNotLoggedIn) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
	}
	return false
}
