package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dghubble/oauth1"

	"github.com/cuemby/twicorder/pkg/config"
)

// DefaultTimeout bounds a single request attempt.
const DefaultTimeout = 30 * time.Second

// tokenURL is a var so tests can point the grant at a local server.
var tokenURL = "https://api.twitter.com/oauth2/token"

// Client performs signed HTTP requests against the API. The token form is
// opaque to callers; they only choose between user context and app context.
type Client struct {
	http *http.Client
}

// NewUserClient builds a client whose requests are signed with OAuth 1.0a
// user-context credentials.
func NewUserClient(creds *config.Credentials) *Client {
	cfg := oauth1.NewConfig(
		creds.Application.ConsumerKey,
		creds.Application.ConsumerSecret,
	)
	token := oauth1.NewToken(creds.User.Key, creds.User.Secret)
	httpClient := cfg.Client(oauth1.NoContext, token)
	httpClient.Timeout = DefaultTimeout
	return &Client{http: httpClient}
}

// Get performs a signed GET against the given URL.
func (c *Client) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	return c.http.Do(req)
}

// Post performs a signed POST with a JSON body against the given URL.
func (c *Client) Post(ctx context.Context, rawURL string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, rawURL, strings.NewReader(string(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.http.Do(req)
}

// AppClient performs app-only requests authorized with a bearer token
// obtained through the client-credentials grant. The token is fetched
// lazily on first use and cached for the life of the process.
type AppClient struct {
	consumerKey    string
	consumerSecret string
	http           *http.Client

	mu    sync.Mutex
	token string
}

// NewAppClient builds an app-context client from the application secrets.
func NewAppClient(creds *config.Credentials) *AppClient {
	return &AppClient{
		consumerKey:    creds.Application.ConsumerKey,
		consumerSecret: creds.Application.ConsumerSecret,
		http:           &http.Client{Timeout: DefaultTimeout},
	}
}

// bearerToken returns the cached token, fetching it on first use.
func (c *AppClient) bearerToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" {
		return c.token, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()),
	)
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.SetBasicAuth(url.QueryEscape(c.consumerKey), url.QueryEscape(c.consumerSecret))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=UTF-8")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("token request returned %d: %s", resp.StatusCode, body)
	}

	var payload struct {
		TokenType   string `json:"token_type"`
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("token response carried no access token")
	}
	c.token = payload.AccessToken
	return c.token, nil
}

// Get performs a bearer-authorized GET against the given URL.
func (c *AppClient) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, rawURL, nil)
}

// Post performs a bearer-authorized POST with a JSON body.
func (c *AppClient) Post(ctx context.Context, rawURL string, body []byte) (*http.Response, error) {
	return c.do(ctx, http.MethodPost, rawURL, body)
}

func (c *AppClient) do(ctx context.Context, method, rawURL string, body []byte) (*http.Response, error) {
	token, err := c.bearerToken(ctx)
	if err != nil {
		return nil, err
	}
	var reader io.Reader
	if body != nil {
		reader = strings.NewReader(string(body))
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.http.Do(req)
}
