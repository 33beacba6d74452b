package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func jwksServer(t *testing.T, kid string, pub *rsa.PublicKey) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		json.NewEncoder(w).Encode(JWKSResponse{Keys: []JWKSKey{{
			Kty: "RSA",
			Kid: kid,
			N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}}})
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func rsaToken(t *testing.T, key *rsa.PrivateKey, kid string, claims Claims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kid
	s, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestJWTVerifier_JWKS(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	srv, hits := jwksServer(t, "k1", &key.PublicKey)
	v := NewJWTVerifier(JWTConfig{JWKSURL: srv.URL})

	uid := uuid.New()
	id, err := v.Verify(rsaToken(t, key, "k1", validClaims(uid, "admin")))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if id.UserID != uid || id.Role != RoleAdmin {
		t.Errorf("unexpected identity %+v", id)
	}

	if _, err := v.Verify(rsaToken(t, key, "k1", validClaims(uuid.New(), "patient"))); err != nil {
		t.Fatalf("second Verify: %v", err)
	}
	if n := atomic.LoadInt32(hits); n != 1 {
		t.Errorf("expected keys to be cached, endpoint hit %d times", n)
	}

	if _, err := v.Verify(rsaToken(t, key, "unknown", validClaims(uid))); err == nil {
		t.Error("expected unknown kid to be rejected")
	}
}

func TestJWKSCache_RefetchesAfterTTL(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	srv, hits := jwksServer(t, "k1", &key.PublicKey)
	cache := NewJWKSCache(srv.URL, time.Millisecond)

	if _, err := cache.GetKey("k1"); err != nil {
		t.Fatalf("GetKey: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := cache.GetKey("k1"); err != nil {
		t.Fatalf("GetKey: %v", err)
	}
	if n := atomic.LoadInt32(hits); n != 2 {
		t.Errorf("expected a refetch after expiry, got %d fetches", n)
	}
}
