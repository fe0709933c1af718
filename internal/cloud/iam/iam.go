// Package iam exchanges an IBM Cloud API key for an IAM access token.
package iam

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"vmsched/internal/cloud/httpx"
)

const DefaultURL = "https://iam.cloud.ibm.com/identity/token"

const grantTypeAPIKey = "urn:ibm:params:oauth:grant-type:apikey"

// Token is an issued IAM token.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Expiration  int64  `json:"expiration"`
}

type Client struct {
	http *httpx.Client
	url  string
}

// New returns a client posting to tokenURL (DefaultURL if empty).
func New(h *httpx.Client, tokenURL string) *Client {
	if strings.TrimSpace(tokenURL) == "" {
		tokenURL = DefaultURL
	}
	return &Client{http: h, url: tokenURL}
}

// Token requests an access token for apiKey.
func (c *Client) Token(ctx context.Context, apiKey string) (Token, error) {
	if strings.TrimSpace(apiKey) == "" {
		return Token{}, errors.New("iam: api key is empty")
	}
	var tok Token
	_, err := c.http.Do(ctx, httpx.Request{
		Method: http.MethodPost,
		URL:    c.url,
		Form:   url.Values{"grant_type": {grantTypeAPIKey}, "apikey": {apiKey}},
	}, &tok)
	if err != nil {
		return Token{}, fmt.Errorf("iam token: %w", err)
	}
	if tok.AccessToken == "" {
		return Token{}, errors.New("iam token: empty access_token in response")
	}
	return tok, nil
}

// AccessToken is Token reduced to the bearer string.
func (c *Client) AccessToken(ctx context.Context, apiKey string) (string, error) {
	tok, err := c.Token(ctx, apiKey)
	return tok.AccessToken, err
}
