package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"stakecurate/cmd/internal/secret"
	"stakecurate/gateway/middleware"
)

// Global CLI flags
var (
	// Endpoint is the contestd base URL.
	Endpoint string
	// Caller is the account the CLI acts as when minting a token.
	Caller string
	// SecretEnv names the variable holding the token signing secret.
	SecretEnv string
	// Output selects "json" or the default table output.
	Output string
)

const tokenEnv = "CONTESTCTL_TOKEN"

// Client is a thin JSON client for the contestd API.
type Client struct {
	base   string
	http   *http.Client
	bearer func() (string, error)
}

// NewClient returns a client that authenticates with CONTESTCTL_TOKEN when set,
// otherwise with a token minted for Caller from the signing secret.
func NewClient() *Client {
	src := secret.NewSource(SecretEnv, "token signing secret")
	return &Client{
		base: strings.TrimRight(Endpoint, "/"),
		http: &http.Client{Timeout: 30 * time.Second},
		bearer: func() (string, error) {
			if token := strings.TrimSpace(os.Getenv(tokenEnv)); token != "" {
				return token, nil
			}
			if strings.TrimSpace(Caller) == "" {
				return "", fmt.Errorf("--as is required for this command (or set %s)", tokenEnv)
			}
			key, err := src.Get()
			if err != nil {
				return "", err
			}
			return middleware.IssueToken(key, Caller, "", "", 5*time.Minute)
		},
	}
}

type apiError struct {
	Status int
	Msg    string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("contestd returned %d: %s", e.Status, e.Msg)
}

// Do sends a request and decodes the JSON response into out. Authenticated
// requests carry a bearer token.
func (c *Client) Do(ctx context.Context, method, path string, auth bool, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		token, err := c.bearer()
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	if res.StatusCode >= 300 {
		var payload struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
			msg = payload.Error
		}
		return &apiError{Status: res.StatusCode, Msg: msg}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

// Raw fetches a non-JSON body such as a CSV export.
func (c *Client) Raw(ctx context.Context, path string) ([]byte, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return nil, nil, err
	}
	res, err := c.http.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, nil, err
	}
	if res.StatusCode >= 300 {
		return nil, nil, &apiError{Status: res.StatusCode, Msg: strings.TrimSpace(string(data))}
	}
	return data, res.Header, nil
}
