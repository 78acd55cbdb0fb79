package handlers

import (
	"context"
	"encoding/base64"
	"html/template"
	"log/slog"
	"net/http"

	"convexbot/internal/compliance"
	"convexbot/internal/config"
	"convexbot/internal/shopify"
	"convexbot/internal/theme"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
)

type TokenExchanger interface {
	ExchangeToken(ctx context.Context, shop, clientID, clientSecret, code string) (shopify.Token, error)
}

type BlockInstaller interface {
	Install(ctx context.Context, shopDomain, accessToken string) (*theme.Result, error)
}

// Deps are the collaborators behind the HTTP surface.
type Deps struct {
	Tokens    TokenExchanger
	Installer BlockInstaller
	Customers compliance.Store
	Shops     compliance.Store
	Notifier  compliance.Notifier
	Logger    *slog.Logger
}

// App routes API Gateway HTTP API (payload v2) requests. The same router is
// served by the Lambda entrypoint and by the local HTTP server.
type App struct {
	cfg       *config.Config
	tokens    TokenExchanger
	installer BlockInstaller
	customers compliance.Store
	shops     compliance.Store
	notifier  compliance.Notifier
	logger    *slog.Logger
	landing   *template.Template
}

func New(cfg *config.Config, d Deps) *App {
	a := &App{
		cfg:       cfg,
		tokens:    d.Tokens,
		installer: d.Installer,
		customers: d.Customers,
		shops:     d.Shops,
		notifier:  d.Notifier,
		logger:    d.Logger,
		landing:   landingTemplate,
	}
	if a.notifier == nil {
		a.notifier = compliance.NopNotifier{}
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a
}

type route struct {
	method string
	fn     func(context.Context, *slog.Logger, events.APIGatewayV2HTTPRequest) events.APIGatewayV2HTTPResponse
}

func (a *App) routes() map[string]route {
	return map[string]route{
		"/":                      {http.MethodGet, a.landingPage},
		"/health":                {http.MethodGet, a.health},
		"/auth":                  {http.MethodGet, a.auth},
		"/auth/callback":         {http.MethodGet, a.callback},
		"/customer-data-request": {http.MethodPost, a.customerDataRequest},
		"/customer-data-erasure": {http.MethodPost, a.customerDataErasure},
		"/shop-data-erasure":     {http.MethodPost, a.shopDataErasure},
	}
}

func (a *App) Handle(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	reqID := req.RequestContext.RequestID
	if reqID == "" {
		reqID = uuid.NewString()
	}

	method := req.RequestContext.HTTP.Method
	path := req.RawPath
	if path == "" {
		path = req.RequestContext.HTTP.Path
	}
	log := a.logger.With(slog.String("request_id", reqID))

	var resp events.APIGatewayV2HTTPResponse
	r, ok := a.routes()[path]
	switch {
	case !ok:
		resp = errResp(http.StatusNotFound, "not found")
	case r.method != method:
		resp = errResp(http.StatusMethodNotAllowed, "method not allowed")
	default:
		if req.IsBase64Encoded {
			raw, err := base64.StdEncoding.DecodeString(req.Body)
			if err != nil {
				resp = errResp(http.StatusBadRequest, "invalid base64 body")
				break
			}
			req.Body = string(raw)
			req.IsBase64Encoded = false
		}
		resp = r.fn(ctx, log, req)
	}

	log.Info("request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
	)
	return resp, nil
}

func (a *App) health(context.Context, *slog.Logger, events.APIGatewayV2HTTPRequest) events.APIGatewayV2HTTPResponse {
	return jsonResp(http.StatusOK, map[string]any{
		"ok":      true,
		"service": "convexbot",
	})
}
