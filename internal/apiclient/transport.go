package apiclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/cafe-delivery/storefront/internal/domain"
	"github.com/cafe-delivery/storefront/internal/platform/observability"
)

// TokenStore is the slice of the session repository the transport needs.
type TokenStore interface {
	Load(ctx context.Context) (domain.AuthSession, error)
	SaveAccessToken(ctx context.Context, access string) error
	Clear(ctx context.Context) error
}

// refreshFunc exchanges a refresh token for a new access token.
type refreshFunc func(ctx context.Context, refreshToken string) (string, error)

// Endpoints that answer 401 for bad credentials rather than an expired session.
var noRefreshSuffixes = []string{
	"/auth/login/",
	"/auth/register/",
	"/auth/token/refresh/",
}

// refreshTransport attaches the visitor's bearer token and retries a request once after a 401,
// with a freshly refreshed token. A second 401 or a failed refresh clears the session.
type refreshTransport struct {
	base    http.RoundTripper
	tokens  TokenStore
	refresh refreshFunc
	logger  func(context.Context, string, map[string]any)
}

func (t *refreshTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	session := t.session(ctx)

	first := req.Clone(ctx)
	observability.InjectTraceHeaders(ctx, first.Header)
	if session.AccessToken != "" {
		first.Header.Set("Authorization", "Bearer "+session.AccessToken)
	}
	resp, err := t.base.RoundTrip(first)
	if err != nil || resp.StatusCode != http.StatusUnauthorized || skipsRefresh(req) {
		return resp, err
	}
	if session.RefreshToken == "" {
		if session.AccessToken == "" {
			// Anonymous caller hitting a protected endpoint.
			return resp, nil
		}
		closeBody(resp)
		return nil, t.expire(ctx, "missing_refresh_token")
	}
	if req.Body != nil && req.GetBody == nil {
		return resp, nil
	}
	closeBody(resp)

	access, err := t.refresh(ctx, session.RefreshToken)
	if err != nil || access == "" {
		return nil, t.expire(ctx, "refresh_failed")
	}
	if err := t.tokens.SaveAccessToken(ctx, access); err != nil {
		t.log(ctx, "apiclient.refresh.persist_failed", map[string]any{"error": err.Error()})
	}

	retry := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}
	observability.InjectTraceHeaders(ctx, retry.Header)
	retry.Header.Set("Authorization", "Bearer "+access)
	resp, err = t.base.RoundTrip(retry)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		closeBody(resp)
		return nil, t.expire(ctx, "retry_unauthorized")
	}
	return resp, nil
}

func (t *refreshTransport) session(ctx context.Context) domain.AuthSession {
	if t.tokens == nil {
		return domain.AuthSession{}
	}
	session, err := t.tokens.Load(ctx)
	if err != nil {
		return domain.AuthSession{}
	}
	return session
}

func (t *refreshTransport) expire(ctx context.Context, reason string) error {
	if err := t.tokens.Clear(ctx); err != nil {
		t.log(ctx, "apiclient.session.clear_failed", map[string]any{"error": err.Error()})
		return errors.Join(ErrSessionExpired, err)
	}
	t.log(ctx, "apiclient.session.expired", map[string]any{"reason": reason})
	return ErrSessionExpired
}

func (t *refreshTransport) log(ctx context.Context, event string, fields map[string]any) {
	if t.logger != nil {
		t.logger(ctx, event, fields)
	}
}

func skipsRefresh(req *http.Request) bool {
	path := req.URL.Path
	for _, suffix := range noRefreshSuffixes {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}

func closeBody(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
}
