package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/lestrrat-go/httprc/v3"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/triad3/irpf-import/internal/logger"
)

// AccountHeader carries the account when authentication is disabled.
const AccountHeader = "X-Account-ID"

// KeySource yields the key set that signs access tokens.
type KeySource interface {
	KeySet(ctx context.Context) (jwk.Set, error)
}

// JWKSCache keeps a remote JWKS fresh in the background.
type JWKSCache struct {
	cache *jwk.Cache
	url   string
}

func NewJWKSCache(ctx context.Context, url string) (*JWKSCache, error) {
	cache, err := jwk.NewCache(ctx, httprc.NewClient())
	if err != nil {
		return nil, fmt.Errorf("initialize jwk cache: %w", err)
	}
	if err := cache.Register(ctx, url); err != nil {
		return nil, fmt.Errorf("register jwks %s: %w", url, err)
	}
	return &JWKSCache{cache: cache, url: url}, nil
}

func (c *JWKSCache) KeySet(ctx context.Context) (jwk.Set, error) {
	return c.cache.Lookup(ctx, c.url)
}

// StaticKeys serves a fixed key set.
type StaticKeys struct {
	Set jwk.Set
}

func (s StaticKeys) KeySet(context.Context) (jwk.Set, error) {
	return s.Set, nil
}

// Auth verifies the bearer token against keys and stores its subject as the
// account ID.
func Auth(keys KeySource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := logger.FromContext(r.Context())

			raw, ok := bearerToken(r)
			if !ok {
				WriteError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			set, err := keys.KeySet(r.Context())
			if err != nil {
				log.Error().Err(err).Msg("Failed to fetch JWKS")
				WriteError(w, http.StatusServiceUnavailable, "authentication unavailable")
				return
			}

			token, err := jwt.Parse([]byte(raw), jwt.WithKeySet(set), jwt.WithValidate(true))
			if err != nil {
				log.Debug().Err(err).Msg("Rejected access token")
				WriteError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			accountID, ok := token.Subject()
			if !ok || accountID == "" {
				WriteError(w, http.StatusUnauthorized, "token has no subject")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAccountID(r.Context(), accountID)))
		})
	}
}

// HeaderAuth trusts the X-Account-ID header. Local development only.
func HeaderAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accountID := strings.TrimSpace(r.Header.Get(AccountHeader))
		if accountID == "" {
			WriteError(w, http.StatusUnauthorized, "missing "+AccountHeader+" header")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithAccountID(r.Context(), accountID)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, tok, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}

// WithAccountID stores the authenticated account.
func WithAccountID(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, accountIDKey, accountID)
}

// AccountID returns the authenticated account.
func AccountID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(accountIDKey).(string)
	return id, ok && id != ""
}
