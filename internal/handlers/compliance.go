package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"convexbot/internal/compliance"

	"github.com/aws/aws-lambda-go/events"
)

// flexID accepts a JSON string or number and echoes it back unchanged.
type flexID struct {
	raw  json.RawMessage
	key  string
	zero bool
}

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		f.key = strings.TrimSpace(s)
	} else {
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return err
		}
		f.key = n.String()
		v, err := n.Float64()
		f.zero = err == nil && v == 0
	}
	f.raw = append(json.RawMessage(nil), b...)
	return nil
}

func (f flexID) MarshalJSON() ([]byte, error) {
	if len(f.raw) == 0 {
		return []byte("null"), nil
	}
	return f.raw, nil
}

// empty reports a missing id. Numeric zero counts as missing, like an empty string.
func (f flexID) empty() bool { return f.key == "" || f.zero }

type complianceReq struct {
	CustomerID flexID `json:"customer_id"`
	ShopID     flexID `json:"shop_id"`
	RequestID  flexID `json:"request_id"`
}

func parseComplianceReq(body string) (complianceReq, error) {
	var in complianceReq
	if strings.TrimSpace(body) == "" {
		return in, nil
	}
	err := json.Unmarshal([]byte(body), &in)
	return in, err
}

func (a *App) customerDataRequest(ctx context.Context, log *slog.Logger, req events.APIGatewayV2HTTPRequest) events.APIGatewayV2HTTPResponse {
	in, err := parseComplianceReq(req.Body)
	if err != nil {
		return errResp(http.StatusBadRequest, "invalid json body")
	}
	if in.CustomerID.empty() || in.RequestID.empty() {
		return errResp(http.StatusBadRequest, "Missing customer_id or request_id")
	}

	data, err := a.customers.Get(ctx, in.CustomerID.key)
	if errors.Is(err, compliance.ErrNotFound) {
		return errResp(http.StatusNotFound, "Customer data not found")
	}
	if err != nil {
		log.Error("customer data lookup failed", slog.String("customer_id", in.CustomerID.key), slog.Any("error", err))
		return errResp(http.StatusInternalServerError, "failed to read customer data")
	}

	a.notify(ctx, log, compliance.EventCustomerDataRequest, in.RequestID, in.CustomerID)
	return jsonResp(http.StatusOK, map[string]any{
		"request_id":  in.RequestID,
		"customer_id": in.CustomerID,
		"data":        data,
	})
}

func (a *App) customerDataErasure(ctx context.Context, log *slog.Logger, req events.APIGatewayV2HTTPRequest) events.APIGatewayV2HTTPResponse {
	in, err := parseComplianceReq(req.Body)
	if err != nil {
		return errResp(http.StatusBadRequest, "invalid json body")
	}
	if in.CustomerID.empty() || in.RequestID.empty() {
		return errResp(http.StatusBadRequest, "Missing customer_id or request_id")
	}

	err = a.customers.Delete(ctx, in.CustomerID.key)
	if errors.Is(err, compliance.ErrNotFound) {
		return errResp(http.StatusNotFound, "Customer data not found")
	}
	if err != nil {
		log.Error("customer data erasure failed", slog.String("customer_id", in.CustomerID.key), slog.Any("error", err))
		return errResp(http.StatusInternalServerError, "failed to erase customer data")
	}

	a.notify(ctx, log, compliance.EventCustomerRedact, in.RequestID, in.CustomerID)
	return jsonResp(http.StatusOK, map[string]any{
		"request_id":  in.RequestID,
		"customer_id": in.CustomerID,
		"status":      "Data erased successfully",
	})
}

func (a *App) shopDataErasure(ctx context.Context, log *slog.Logger, req events.APIGatewayV2HTTPRequest) events.APIGatewayV2HTTPResponse {
	in, err := parseComplianceReq(req.Body)
	if err != nil {
		return errResp(http.StatusBadRequest, "invalid json body")
	}
	if in.ShopID.empty() || in.RequestID.empty() {
		return errResp(http.StatusBadRequest, "Missing shop_id or request_id")
	}

	err = a.shops.Delete(ctx, in.ShopID.key)
	if errors.Is(err, compliance.ErrNotFound) {
		return errResp(http.StatusNotFound, "Shop data not found")
	}
	if err != nil {
		log.Error("shop data erasure failed", slog.String("shop_id", in.ShopID.key), slog.Any("error", err))
		return errResp(http.StatusInternalServerError, "failed to erase shop data")
	}

	a.notify(ctx, log, compliance.EventShopRedact, in.RequestID, in.ShopID)
	return jsonResp(http.StatusOK, map[string]any{
		"request_id": in.RequestID,
		"shop_id":    in.ShopID,
		"status":     "Shop data erased successfully",
	})
}

// notify is best effort; the request has already been served.
func (a *App) notify(ctx context.Context, log *slog.Logger, kind string, requestID, subject flexID) {
	err := a.notifier.Notify(ctx, compliance.Event{
		Kind:      kind,
		RequestID: requestID.key,
		SubjectID: subject.key,
	})
	if err != nil {
		log.Warn("compliance notification failed", slog.String("event", kind), slog.Any("error", err))
	}
}
