package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"convexbot/internal/shopify"
	"convexbot/internal/theme"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
)

//go:embed views/install.html
var viewsFS embed.FS

var landingTemplate = template.Must(template.ParseFS(viewsFS, "views/install.html"))

type landingData struct {
	Title    string
	Message  string
	ShopName string
}

func (a *App) landingPage(ctx context.Context, log *slog.Logger, req events.APIGatewayV2HTTPRequest) events.APIGatewayV2HTTPResponse {
	var buf bytes.Buffer
	err := a.landing.Execute(&buf, landingData{
		Title:    "Convex AI Chatbot",
		Message:  "Install the chatbot on your Shopify storefront.",
		ShopName: strings.TrimSpace(req.QueryStringParameters["shop"]),
	})
	if err != nil {
		log.Error("render landing page", slog.Any("error", err))
		return textResp(http.StatusInternalServerError, "failed to render page")
	}
	return htmlResp(http.StatusOK, buf.String())
}

func (a *App) auth(ctx context.Context, log *slog.Logger, req events.APIGatewayV2HTTPRequest) events.APIGatewayV2HTTPResponse {
	shop := strings.ToLower(strings.TrimSpace(req.QueryStringParameters["shop"]))
	if shop == "" {
		return textResp(http.StatusBadRequest, "Missing shop parameter")
	}
	if !shopify.IsValidShopDomain(shop) {
		return textResp(http.StatusBadRequest, "invalid shop (expected like your-store.myshopify.com)")
	}

	state := uuid.NewString()
	resp := redirect(shopify.AuthorizeURL(shop, a.cfg.APIKey, a.cfg.Scopes, a.cfg.RedirectURI, state))
	resp.Cookies = []string{stateCookie(state, stateCookieTTL)}
	return resp
}

const (
	stateCookieName = "convexbot_oauth_state"
	stateCookieTTL  = 10 * 60
)

func stateCookie(value string, maxAge int) string {
	c := &http.Cookie{
		Name:     stateCookieName,
		Value:    value,
		Path:     "/auth",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
	return c.String()
}

// stateFromRequest returns the state nonce set by /auth, if the browser sent it.
// Installs started from the Shopify admin skip /auth and carry no cookie.
func stateFromRequest(req events.APIGatewayV2HTTPRequest) (string, bool) {
	lines := req.Cookies
	if len(lines) == 0 && req.Headers["cookie"] != "" {
		lines = []string{req.Headers["cookie"]}
	}
	for _, line := range lines {
		cookies, err := http.ParseCookie(line)
		if err != nil {
			continue
		}
		for _, c := range cookies {
			if c.Name == stateCookieName && c.Value != "" {
				return c.Value, true
			}
		}
	}
	return "", false
}

// callback finishes OAuth and installs the chatbot block. Every failure past
// parameter validation is a flat 500; details only go to the log.
func (a *App) callback(ctx context.Context, log *slog.Logger, req events.APIGatewayV2HTTPRequest) events.APIGatewayV2HTTPResponse {
	params := req.QueryStringParameters
	shop := strings.ToLower(strings.TrimSpace(params["shop"]))
	code := strings.TrimSpace(params["code"])

	if code == "" || shop == "" {
		return textResp(http.StatusBadRequest, "Missing code or shop parameter")
	}
	if !shopify.IsValidShopDomain(shop) {
		return textResp(http.StatusBadRequest, "invalid shop")
	}
	if a.cfg.VerifyHMAC && !shopify.VerifyHMAC(params, a.cfg.APISecret) {
		return textResp(http.StatusBadRequest, "invalid hmac")
	}
	if want, ok := stateFromRequest(req); ok && !hmac.Equal([]byte(want), []byte(params["state"])) {
		return textResp(http.StatusBadRequest, "invalid state")
	}

	log = log.With(slog.String("shop", shop))

	tok, err := a.tokens.ExchangeToken(ctx, shop, a.cfg.APIKey, a.cfg.APISecret, code)
	if err != nil {
		log.Error("token exchange failed", slog.Any("error", err))
		return textResp(http.StatusInternalServerError, "Failed to install app")
	}

	res, err := a.installer.Install(ctx, shop, tok.AccessToken)
	if err != nil {
		log.Error("chatbot block install failed",
			slog.String("reason", installFailure(err)),
			slog.Any("error", err),
		)
		return textResp(http.StatusInternalServerError, "Failed to install app")
	}

	log.Info("app installed",
		slog.Int64("theme_id", res.ThemeID),
		slog.String("action", string(res.Action)),
	)
	resp := redirect(fmt.Sprintf("https://%s/admin/themes/current/editor?context=apps", shop))
	resp.Cookies = []string{stateCookie("", -1)}
	return resp
}

func installFailure(err error) string {
	switch {
	case errors.Is(err, theme.ErrNoMainTheme):
		return "no_main_theme"
	case errors.Is(err, theme.ErrThemeListFailed):
		return "theme_list_failed"
	case errors.Is(err, theme.ErrAssetFetchFailed):
		return "asset_fetch_failed"
	case errors.Is(err, theme.ErrMalformedAsset):
		return "malformed_asset"
	case errors.Is(err, theme.ErrAssetWriteFailed):
		return "asset_write_failed"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "unknown"
	}
}
