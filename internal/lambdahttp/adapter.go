// Package lambdahttp serves an API Gateway HTTP API (payload v2) handler over
// plain net/http, so the Lambda router also runs as a local server.
package lambdahttp

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
)

// maxBody matches the API Gateway payload limit of 10 MB.
const maxBody = 10 << 20

type HandlerFunc func(context.Context, events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error)

// Handler converts each request to an APIGatewayV2HTTPRequest, calls h and
// writes the result back.
func Handler(h HandlerFunc, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBody)
		req, err := toEvent(r)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
				return
			}
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}

		resp, err := h(r.Context(), req)
		if err != nil {
			logger.Error("handler error", slog.String("path", r.URL.Path), slog.Any("error", err))
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if err := writeResponse(w, resp); err != nil {
			logger.Error("write response", slog.String("path", r.URL.Path), slog.Any("error", err))
		}
	})
}

func toEvent(r *http.Request) (events.APIGatewayV2HTTPRequest, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return events.APIGatewayV2HTTPRequest{}, err
	}

	headers := make(map[string]string, len(r.Header))
	for k, v := range r.Header {
		headers[strings.ToLower(k)] = strings.Join(v, ",")
	}

	var query map[string]string
	if vals := r.URL.Query(); len(vals) > 0 {
		query = make(map[string]string, len(vals))
		for k, v := range vals {
			query[k] = strings.Join(v, ",")
		}
	}

	var cookies []string
	for _, c := range r.Cookies() {
		cookies = append(cookies, c.String())
	}

	req := events.APIGatewayV2HTTPRequest{
		Version:               "2.0",
		RouteKey:              "$default",
		RawPath:               r.URL.Path,
		RawQueryString:        r.URL.RawQuery,
		Cookies:               cookies,
		Headers:               headers,
		QueryStringParameters: query,
	}
	if utf8.Valid(body) {
		req.Body = string(body)
	} else {
		req.Body = base64.StdEncoding.EncodeToString(body)
		req.IsBase64Encoded = true
	}

	now := time.Now()
	req.RequestContext = events.APIGatewayV2HTTPRequestContext{
		RouteKey:   "$default",
		Stage:      "$default",
		RequestID:  uuid.NewString(),
		DomainName: r.Host,
		Time:       now.UTC().Format("02/Jan/2006:15:04:05 -0700"),
		TimeEpoch:  now.UnixMilli(),
		HTTP: events.APIGatewayV2HTTPRequestContextHTTPDescription{
			Method:    r.Method,
			Path:      r.URL.Path,
			Protocol:  r.Proto,
			SourceIP:  r.RemoteAddr,
			UserAgent: r.UserAgent(),
		},
	}
	return req, nil
}

func writeResponse(w http.ResponseWriter, resp events.APIGatewayV2HTTPResponse) error {
	h := w.Header()
	for k, v := range resp.Headers {
		h.Set(k, v)
	}
	for k, vs := range resp.MultiValueHeaders {
		for _, v := range vs {
			h.Add(k, v)
		}
	}
	for _, c := range resp.Cookies {
		h.Add("Set-Cookie", c)
	}

	body := []byte(resp.Body)
	if resp.IsBase64Encoded {
		raw, err := base64.StdEncoding.DecodeString(resp.Body)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return err
		}
		body = raw
	}

	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, err := w.Write(body)
	return err
}
