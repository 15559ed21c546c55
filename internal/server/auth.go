package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/groundcheck-ai/groundcheck/internal/config"
)

// Auth errors surfaced by token issuance and verification.
var (
	ErrAuthNotConfigured = errors.New("authentication not configured")
	ErrInvalidAPIKey     = errors.New("invalid api key")
	ErrInvalidToken      = errors.New("invalid token")
	ErrTokenExpired      = errors.New("token has expired")
)

type subjectKey struct{}

// Subject returns the authenticated identity stored by the auth middleware,
// or "" for unauthenticated requests.
func Subject(ctx context.Context) string {
	s, _ := ctx.Value(subjectKey{}).(string)
	return s
}

// TokenResponse is the body of a successful POST /auth/token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Authenticator issues and verifies HS256 bearer tokens, and accepts the raw
// API key via X-API-Key as an equivalent credential. An empty key set
// disables authentication entirely.
type Authenticator struct {
	keys   map[string]struct{}
	secret []byte
	expiry time.Duration
	logger *slog.Logger
}

func NewAuthenticator(cfg config.AuthConfig, logger *slog.Logger) *Authenticator {
	keys := make(map[string]struct{}, len(cfg.APIKeys))
	for _, k := range cfg.APIKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys[k] = struct{}{}
		}
	}
	return &Authenticator{
		keys:   keys,
		secret: []byte(cfg.JWTSecret),
		expiry: time.Duration(cfg.JWTExpiryMinutes) * time.Minute,
		logger: logger,
	}
}

// Enabled reports whether any API keys are configured.
func (a *Authenticator) Enabled() bool { return len(a.keys) > 0 }

// IssueToken exchanges a valid API key for a signed JWT.
func (a *Authenticator) IssueToken(apiKey string) (*TokenResponse, error) {
	if !a.Enabled() {
		return nil, ErrAuthNotConfigured
	}
	if _, ok := a.keys[apiKey]; !ok {
		a.logger.Warn("invalid api key attempt")
		return nil, ErrInvalidAPIKey
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub": apiKey,
		"iat": now.Unix(),
		"exp": now.Add(a.expiry).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return nil, err
	}

	a.logger.Info("token issued", slog.Duration("expiry", a.expiry))
	return &TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(a.expiry.Seconds()),
	}, nil
}

// VerifyToken validates a bearer JWT and returns its subject.
func (a *Authenticator) VerifyToken(raw string) (string, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return a.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrInvalidToken
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", ErrInvalidToken
	}
	return sub, nil
}

// Middleware rejects requests that carry neither a valid API key nor a valid
// bearer token. When no keys are configured the middleware is a no-op, which
// keeps single-user deployments friction-free.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		if key := r.Header.Get("X-API-Key"); key != "" {
			if _, ok := a.keys[key]; ok {
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), subjectKey{}, key)))
				return
			}
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}

		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "missing credentials")
			return
		}
		sub, err := a.VerifyToken(strings.TrimPrefix(auth, "Bearer "))
		if err != nil {
			if errors.Is(err, ErrTokenExpired) {
				writeError(w, http.StatusUnauthorized, "token has expired")
			} else {
				writeError(w, http.StatusUnauthorized, "invalid token")
			}
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), subjectKey{}, sub)))
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
