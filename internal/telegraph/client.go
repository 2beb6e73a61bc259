// Package telegraph publishes article previews to telegra.ph.
package telegraph

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the public Telegraph API endpoint.
const DefaultBaseURL = "https://api.telegra.ph"

// Account is a Telegraph account.
type Account struct {
	ShortName   string `json:"short_name"`
	AuthorName  string `json:"author_name,omitempty"`
	AuthorURL   string `json:"author_url,omitempty"`
	AccessToken string `json:"access_token,omitempty"`
	AuthURL     string `json:"auth_url,omitempty"`
	PageCount   int    `json:"page_count,omitempty"`
}

// Page is a created Telegraph page.
type Page struct {
	Path        string `json:"path"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	AuthorName  string `json:"author_name,omitempty"`
	Views       int    `json:"views,omitempty"`
}

// PageRequest is the input of CreatePage.
type PageRequest struct {
	Title      string
	AuthorName string
	AuthorURL  string
	Content    []any
}

// Client calls the Telegraph API. Methods that act on an account use the
// client's access token.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

// NewClient creates a client. An empty baseURL selects DefaultBaseURL.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		token:   token,
	}
}

// Token returns the access token in use.
func (c *Client) Token() string { return c.token }

// SetToken replaces the access token.
func (c *Client) SetToken(token string) { c.token = token }

// CreateAccount registers a new account and adopts its token.
func (c *Client) CreateAccount(ctx context.Context, a Account) (Account, error) {
	form := url.Values{"short_name": {a.ShortName}}
	if a.AuthorName != "" {
		form.Set("author_name", a.AuthorName)
	}
	if a.AuthorURL != "" {
		form.Set("author_url", a.AuthorURL)
	}
	var out Account
	if err := c.call(ctx, "createAccount", form, &out); err != nil {
		return Account{}, err
	}
	if out.AccessToken == "" {
		return Account{}, fmt.Errorf("telegraph: createAccount: empty access token")
	}
	c.token = out.AccessToken
	return out, nil
}

// GetAccount returns the account behind the current token.
func (c *Client) GetAccount(ctx context.Context) (Account, error) {
	if c.token == "" {
		return Account{}, fmt.Errorf("telegraph: getAccount: no access token")
	}
	form := url.Values{
		"access_token": {c.token},
		"fields":       {`["short_name","author_name","author_url","page_count"]`},
	}
	var out Account
	if err := c.call(ctx, "getAccount", form, &out); err != nil {
		return Account{}, err
	}
	return out, nil
}

// CreatePage publishes content as a new page.
func (c *Client) CreatePage(ctx context.Context, req PageRequest) (Page, error) {
	if c.token == "" {
		return Page{}, fmt.Errorf("telegraph: createPage: no access token")
	}
	content, err := json.Marshal(req.Content)
	if err != nil {
		return Page{}, fmt.Errorf("telegraph: encode content: %w", err)
	}
	form := url.Values{
		"access_token":   {c.token},
		"title":          {req.Title},
		"content":        {string(content)},
		"return_content": {"false"},
	}
	if req.AuthorName != "" {
		form.Set("author_name", req.AuthorName)
	}
	if req.AuthorURL != "" {
		form.Set("author_url", req.AuthorURL)
	}
	var out Page
	if err := c.call(ctx, "createPage", form, &out); err != nil {
		return Page{}, err
	}
	return out, nil
}

type envelope struct {
	OK     bool            `json:"ok"`
	Error  string          `json:"error"`
	Result json.RawMessage `json:"result"`
}

func (c *Client) call(ctx context.Context, method string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("telegraph: %s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("telegraph: %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegraph: %s: status %d", method, resp.StatusCode)
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("telegraph: %s: decode: %w", method, err)
	}
	if !env.OK {
		return fmt.Errorf("telegraph: %s: %s", method, env.Error)
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("telegraph: %s: decode result: %w", method, err)
	}
	return nil
}
