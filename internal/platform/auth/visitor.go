package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cafe-delivery/storefront/internal/platform/requestctx"
)

const (
	defaultVisitorCookie = "cafe_visitor"
	defaultVisitorMaxAge = 365 * 24 * time.Hour
)

// VisitorConfig controls the signed visitor cookie that scopes per-browser storage.
type VisitorConfig struct {
	CookieName string
	Secret     []byte
	Secure     bool
	MaxAge     time.Duration
	NewID      func() string
}

// VisitorMiddleware resolves the visitor id from a signed cookie, issuing a fresh one when the
// cookie is absent or its signature does not verify.
func VisitorMiddleware(cfg VisitorConfig) func(http.Handler) http.Handler {
	if strings.TrimSpace(cfg.CookieName) == "" {
		cfg.CookieName = defaultVisitorCookie
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = defaultVisitorMaxAge
	}
	if cfg.NewID == nil {
		cfg.NewID = func() string { return uuid.NewString() }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := readVisitorCookie(r, cfg)
			if !ok {
				id = cfg.NewID()
				http.SetCookie(w, &http.Cookie{
					Name:     cfg.CookieName,
					Value:    signVisitorID(id, cfg.Secret),
					Path:     "/",
					HttpOnly: true,
					Secure:   cfg.Secure,
					SameSite: http.SameSiteLaxMode,
					MaxAge:   int(cfg.MaxAge / time.Second),
				})
			}
			ctx := requestctx.WithVisitor(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func readVisitorCookie(r *http.Request, cfg VisitorConfig) (string, bool) {
	c, err := r.Cookie(cfg.CookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	id, sig, found := strings.Cut(c.Value, ".")
	if !found || id == "" {
		return "", false
	}
	expected, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return "", false
	}
	if !hmac.Equal(expected, visitorMAC(id, cfg.Secret)) {
		return "", false
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}

func signVisitorID(id string, secret []byte) string {
	return id + "." + base64.RawURLEncoding.EncodeToString(visitorMAC(id, secret))
}

func visitorMAC(id string, secret []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(id))
	return mac.Sum(nil)
}
