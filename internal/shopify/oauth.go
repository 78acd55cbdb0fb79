package shopify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

type Token struct {
	AccessToken string `json:"access_token"`
	Scope       string `json:"scope"`
}

// AuthorizeURL builds the install URL the merchant is redirected to.
// state is optional.
func AuthorizeURL(shop, clientID, scopes, redirectURI, state string) string {
	u := url.URL{
		Scheme: "https",
		Host:   shop,
		Path:   "/admin/oauth/authorize",
	}
	q := url.Values{}
	q.Set("client_id", clientID)
	q.Set("scope", scopes)
	q.Set("redirect_uri", redirectURI)
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// ExchangeToken trades an authorization code for an offline access token.
func (c *Client) ExchangeToken(ctx context.Context, shop, clientID, clientSecret, code string) (Token, error) {
	body := map[string]string{
		"client_id":     clientID,
		"client_secret": clientSecret,
		"code":          code,
	}

	var tok Token
	if err := c.do(ctx, shop, "", http.MethodPost, "/admin/oauth/access_token", body, &tok); err != nil {
		return Token{}, fmt.Errorf("token exchange: %w", err)
	}
	if strings.TrimSpace(tok.AccessToken) == "" {
		return Token{}, errors.New("token exchange: empty access_token in response")
	}
	return tok, nil
}

func IsValidShopDomain(shop string) bool {
	if !strings.HasSuffix(shop, ".myshopify.com") {
		return false
	}
	if strings.ContainsAny(shop, "/ ?#@:") {
		return false
	}
	return len(shop) >= len("a.myshopify.com")
}

// VerifyHMAC checks the signature Shopify appends to OAuth redirects.
// Message = sorted "k=v" pairs (excluding hmac/signature) joined by "&".
func VerifyHMAC(params map[string]string, secret string) bool {
	provided := strings.ToLower(strings.TrimSpace(params["hmac"]))
	if provided == "" || secret == "" {
		return false
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "hmac" || k == "signature" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, params[k]))
	}
	msg := strings.Join(parts, "&")

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(msg))
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(provided))
}
