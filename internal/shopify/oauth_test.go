package shopify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/url"
	"testing"
)

func TestAuthorizeURL(t *testing.T) {
	raw := AuthorizeURL("demo.myshopify.com", "key123", "read_themes,write_themes", "https://app.example.com/auth/callback", "")
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if u.Host != "demo.myshopify.com" || u.Path != "/admin/oauth/authorize" {
		t.Errorf("url = %s", raw)
	}
	q := u.Query()
	if q.Get("client_id") != "key123" {
		t.Errorf("client_id = %q", q.Get("client_id"))
	}
	if q.Get("scope") != "read_themes,write_themes" {
		t.Errorf("scope = %q", q.Get("scope"))
	}
	if q.Get("redirect_uri") != "https://app.example.com/auth/callback" {
		t.Errorf("redirect_uri = %q", q.Get("redirect_uri"))
	}
	if q.Has("state") {
		t.Error("state should be omitted when empty")
	}
}

func TestExchangeToken(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/admin/oauth/access_token" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["client_id"] != "id" || body["client_secret"] != "secret" || body["code"] != "abc" {
			t.Errorf("body = %v", body)
		}
		w.Write([]byte(`{"access_token":"shpat_x","scope":"write_themes"}`))
	})

	tok, err := c.ExchangeToken(context.Background(), "demo.myshopify.com", "id", "secret", "abc")
	if err != nil {
		t.Fatalf("ExchangeToken: %v", err)
	}
	if tok.AccessToken != "shpat_x" || tok.Scope != "write_themes" {
		t.Errorf("tok = %+v", tok)
	}
}

func TestExchangeTokenEmpty(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"scope":"write_themes"}`))
	})
	if _, err := c.ExchangeToken(context.Background(), "demo.myshopify.com", "id", "secret", "abc"); err == nil {
		t.Fatal("expected error for empty access_token")
	}
}

func TestExchangeTokenRejected(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_request"}`))
	})
	if _, err := c.ExchangeToken(context.Background(), "demo.myshopify.com", "id", "secret", "bad"); err == nil {
		t.Fatal("expected error")
	}
}

func TestIsValidShopDomain(t *testing.T) {
	tests := map[string]bool{
		"demo.myshopify.com":          true,
		"my-store-2.myshopify.com":    true,
		"myshopify.com":               false,
		".myshopify.com":              false,
		"evil.com/x.myshopify.com":    false,
		"demo.myshopify.com.evil.com": false,
		"a b.myshopify.com":           false,
		"":                            false,
	}
	for shop, want := range tests {
		if got := IsValidShopDomain(shop); got != want {
			t.Errorf("IsValidShopDomain(%q) = %v, want %v", shop, got, want)
		}
	}
}

func sign(params map[string]string, secret string) string {
	msg := ""
	// keys in sorted order for this fixture: code, shop, timestamp
	for i, k := range []string{"code", "shop", "timestamp"} {
		if i > 0 {
			msg += "&"
		}
		msg += k + "=" + params[k]
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(msg))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyHMAC(t *testing.T) {
	params := map[string]string{
		"code":      "0907a61c0c8d55e99db179b68161bc00",
		"shop":      "demo.myshopify.com",
		"timestamp": "1337178173",
	}
	params["hmac"] = sign(params, "hush")

	if !VerifyHMAC(params, "hush") {
		t.Error("valid signature rejected")
	}
	if VerifyHMAC(params, "other") {
		t.Error("signature accepted with wrong secret")
	}

	params["code"] = "tampered"
	if VerifyHMAC(params, "hush") {
		t.Error("tampered params accepted")
	}

	delete(params, "hmac")
	if VerifyHMAC(params, "hush") {
		t.Error("missing hmac accepted")
	}
}
