package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	UserRolesKey contextKey = "user_roles"
)

const (
	RoleAdmin   = "admin"
	RoleDoctor  = "doctor"
	RolePatient = "patient"
)

// DevUserID is the identity attached to unauthenticated requests in development.
var DevUserID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles"`
}

// Identity is the authenticated caller resolved from a token.
type Identity struct {
	UserID uuid.UUID
	Role   string
}

type JWTConfig struct {
	Issuer   string
	Audience string
	JWKSURL  string
	// SigningKey enables HS256 validation instead of JWKS.
	SigningKey []byte
}

// TokenVerifier turns a raw bearer token into an Identity. The REST middleware
// and the websocket handshake share one verifier.
type TokenVerifier interface {
	Verify(token string) (Identity, error)
}

// JWKSKey represents a single JSON Web Key from a JWKS endpoint.
type JWKSKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKSResponse represents the response from a JWKS endpoint.
type JWKSResponse struct {
	Keys []JWKSKey `json:"keys"`
}

// JWKSCache caches JWKS keys fetched from a remote endpoint with a configurable TTL.
type JWKSCache struct {
	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	jwksURL   string
	ttl       time.Duration
	fetchedAt time.Time
	client    *http.Client
}

func NewJWKSCache(jwksURL string, ttl time.Duration) *JWKSCache {
	return &JWKSCache{
		keys:    make(map[string]*rsa.PublicKey),
		jwksURL: jwksURL,
		ttl:     ttl,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// GetKey returns the RSA public key for kid, refetching on miss or expiry.
func (c *JWKSCache) GetKey(kid string) (*rsa.PublicKey, error) {
	c.mu.RLock()
	key, ok := c.keys[kid]
	expired := time.Since(c.fetchedAt) > c.ttl
	c.mu.RUnlock()

	if ok && !expired {
		return key, nil
	}

	if err := c.fetch(); err != nil {
		return nil, fmt.Errorf("fetching JWKS: %w", err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	key, ok = c.keys[kid]
	if !ok {
		return nil, fmt.Errorf("key with kid %q not found in JWKS", kid)
	}
	return key, nil
}

func (c *JWKSCache) fetch() error {
	resp, err := c.client.Get(c.jwksURL)
	if err != nil {
		return fmt.Errorf("GET %s: %w", c.jwksURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	var jwks JWKSResponse
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return fmt.Errorf("decoding JWKS response: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(jwks.Keys))
	for _, k := range jwks.Keys {
		if k.Kty != "RSA" {
			continue
		}
		pubKey, err := parseRSAPublicKey(k)
		if err != nil {
			continue
		}
		keys[k.Kid] = pubKey
	}

	c.mu.Lock()
	c.keys = keys
	c.fetchedAt = time.Now()
	c.mu.Unlock()

	return nil
}

func parseRSAPublicKey(k JWKSKey) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("decoding modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("decoding exponent: %w", err)
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}

const defaultJWKSCacheTTL = 5 * time.Minute

// JWTVerifier validates HS256 tokens against a shared key, or RS256 tokens
// against a JWKS endpoint when no key is configured.
type JWTVerifier struct {
	keyFunc jwt.Keyfunc
	opts    []jwt.ParserOption
}

func NewJWTVerifier(cfg JWTConfig) *JWTVerifier {
	v := &JWTVerifier{}
	if len(cfg.SigningKey) > 0 {
		key := cfg.SigningKey
		v.keyFunc = func(*jwt.Token) (interface{}, error) { return key, nil }
		v.opts = append(v.opts, jwt.WithValidMethods([]string{"HS256"}))
	} else {
		cache := NewJWKSCache(cfg.JWKSURL, defaultJWKSCacheTTL)
		v.keyFunc = func(token *jwt.Token) (interface{}, error) {
			kid, ok := token.Header["kid"].(string)
			if !ok || kid == "" {
				return nil, fmt.Errorf("token has no kid header")
			}
			return cache.GetKey(kid)
		}
		v.opts = append(v.opts, jwt.WithValidMethods([]string{"RS256"}))
	}
	if cfg.Issuer != "" {
		v.opts = append(v.opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		v.opts = append(v.opts, jwt.WithAudience(cfg.Audience))
	}
	return v
}

func (v *JWTVerifier) Verify(tokenStr string) (Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, v.keyFunc, v.opts...)
	if err != nil || !token.Valid {
		return Identity{}, ErrInvalidToken
	}
	uid, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: subject is not a user id", ErrInvalidToken)
	}
	return Identity{UserID: uid, Role: PrimaryRole(claims.Roles)}, nil
}

// DevVerifier accepts "<user-uuid>" or "<user-uuid>:<role>" as a token.
// Development only.
type DevVerifier struct{}

func (DevVerifier) Verify(token string) (Identity, error) {
	id, role, _ := strings.Cut(token, ":")
	uid, err := uuid.Parse(id)
	if err != nil {
		return Identity{}, ErrInvalidToken
	}
	if role == "" {
		role = RolePatient
	}
	return Identity{UserID: uid, Role: PrimaryRole([]string{role})}, nil
}

// PrimaryRole collapses a role list to the single role used for alert scoping.
func PrimaryRole(roles []string) string {
	best := RolePatient
	for _, r := range roles {
		switch r {
		case RoleAdmin:
			return RoleAdmin
		case RoleDoctor:
			best = RoleDoctor
		}
	}
	return best
}

func bearerToken(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
	}
	return strings.TrimSpace(parts[1]), nil
}

// Skipper reports whether a request bypasses authentication.
type Skipper func(c echo.Context) bool

// PublicPaths skips authentication for exact path matches.
func PublicPaths(paths ...string) Skipper {
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}
	return func(c echo.Context) bool {
		_, ok := set[c.Request().URL.Path]
		return ok
	}
}

func JWTMiddleware(verifier TokenVerifier, skip Skipper) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skip != nil && skip(c) {
				return next(c)
			}
			tokenStr, err := bearerToken(c)
			if err != nil {
				return err
			}
			id, err := verifier.Verify(tokenStr)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			c.SetRequest(c.Request().WithContext(WithIdentity(c.Request().Context(), id)))
			return next(c)
		}
	}
}

// DevAuthMiddleware lets unauthenticated requests through as DevUserID/admin.
// A bearer token, when present, is still resolved with DevVerifier.
func DevAuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := Identity{UserID: DevUserID, Role: RoleAdmin}
			if c.Request().Header.Get("Authorization") != "" {
				tokenStr, err := bearerToken(c)
				if err != nil {
					return err
				}
				if id, err = (DevVerifier{}).Verify(tokenStr); err != nil {
					return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
				}
			}
			c.SetRequest(c.Request().WithContext(WithIdentity(c.Request().Context(), id)))
			return next(c)
		}
	}
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, id.UserID)
	return context.WithValue(ctx, UserRolesKey, []string{id.Role})
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	uid, ok := ctx.Value(UserIDKey).(uuid.UUID)
	if !ok {
		return Identity{}, false
	}
	return Identity{UserID: uid, Role: PrimaryRole(RolesFromContext(ctx))}, true
}

func RolesFromContext(ctx context.Context) []string {
	roles, _ := ctx.Value(UserRolesKey).([]string)
	return roles
}
