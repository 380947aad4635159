package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func newHSManager(t *testing.T, ttl time.Duration) *Manager {
	t.Helper()
	m, err := NewManager(Config{TTL: ttl, SigningMethod: MethodHS256, PrivateKey: []byte(testSecret)})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestIssueAndVerifyHS256(t *testing.T) {
	m := newHSManager(t, 7*24*time.Hour)

	token, issued, err := m.Issue("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := m.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UID != "user-1" {
		t.Fatalf("expected uid user-1, got %q", claims.UID)
	}
	if claims.ID == "" || claims.ID != issued.ID {
		t.Fatalf("expected jti %q, got %q", issued.ID, claims.ID)
	}

	validity := claims.ExpiresAt.Sub(claims.IssuedAt.Time)
	if validity != 7*24*time.Hour {
		t.Fatalf("expected 7 day validity, got %v", validity)
	}
}

func TestIssueProducesUniqueTokens(t *testing.T) {
	m := newHSManager(t, time.Hour)
	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		token, _, err := m.Issue("same-user")
		if err != nil {
			t.Fatalf("issue: %v", err)
		}
		if _, dup := seen[token]; dup {
			t.Fatal("expected every issued token to be unique")
		}
		seen[token] = struct{}{}
	}
}

func TestNewManagerRejectsShortSecret(t *testing.T) {
	_, err := NewManager(Config{TTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("short")})
	if err == nil {
		t.Fatal("expected short secret to be rejected")
	}
	if _, err := NewManager(Config{TTL: 0, SigningMethod: MethodHS256, PrivateKey: []byte(testSecret)}); err == nil {
		t.Fatal("expected zero ttl to be rejected")
	}
	if _, err := NewManager(Config{TTL: time.Minute, SigningMethod: "rs256", PrivateKey: []byte(testSecret)}); err == nil {
		t.Fatal("expected unsupported method to be rejected")
	}
}

func TestVerifyRejectsWrongSecretAndTampering(t *testing.T) {
	m := newHSManager(t, time.Hour)
	other, err := NewManager(Config{TTL: time.Hour, SigningMethod: MethodHS256, PrivateKey: []byte(strings.Repeat("x", 32))})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	token, _, err := other.Issue("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for foreign secret, got %v", err)
	}

	good, _, _ := m.Issue("user-1")
	tampered := good[:len(good)-2] + "xx"
	if _, err := m.Verify(tampered); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for tampered token, got %v", err)
	}
}

func TestVerifyRejectsExpiredAndMissingClaims(t *testing.T) {
	m := newHSManager(t, time.Hour)

	expired := Claims{UID: "u", RegisteredClaims: gjwt.RegisteredClaims{
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(-time.Minute)),
		IssuedAt:  gjwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}}
	signed, _ := gjwt.NewWithClaims(gjwt.SigningMethodHS256, expired).SignedString([]byte(testSecret))
	if _, err := m.Verify(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token rejected, got %v", err)
	}

	noExp := Claims{UID: "u"}
	signed, _ = gjwt.NewWithClaims(gjwt.SigningMethodHS256, noExp).SignedString([]byte(testSecret))
	if _, err := m.Verify(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected token without exp rejected, got %v", err)
	}

	noUID := Claims{RegisteredClaims: gjwt.RegisteredClaims{ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute))}}
	signed, _ = gjwt.NewWithClaims(gjwt.SigningMethodHS256, noUID).SignedString([]byte(testSecret))
	if _, err := m.Verify(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected token without uid rejected, got %v", err)
	}
}

func TestVerifyRejectsWrongAlgorithm(t *testing.T) {
	pub, _ := newEdKeys(t)
	m, err := NewManager(Config{TTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := Claims{UID: "u", RegisteredClaims: gjwt.RegisteredClaims{ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute))}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := m.Verify(token); err == nil {
		t.Fatal("expected wrong algorithm to be rejected")
	}
}

func TestVerifyIssuerAudienceAndLeeway(t *testing.T) {
	_, priv := newEdKeys(t)
	m, err := NewManager(Config{
		TTL:           time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     priv.Public().(ed25519.PublicKey),
		Issuer:        "sessiongate",
		Audience:      "api",
		Leeway:        30 * time.Second,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	token, _, err := m.Issue("u")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(token); err != nil {
		t.Fatalf("expected valid token to verify: %v", err)
	}

	sign := func(c Claims) string {
		s, _ := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, c).SignedString(priv)
		return s
	}

	wrongIssuer := sign(Claims{UID: "u", RegisteredClaims: gjwt.RegisteredClaims{
		Issuer:    "other",
		Audience:  gjwt.ClaimStrings{"api"},
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}})
	if _, err := m.Verify(wrongIssuer); err == nil {
		t.Fatal("expected wrong issuer to fail")
	}

	wrongAudience := sign(Claims{UID: "u", RegisteredClaims: gjwt.RegisteredClaims{
		Issuer:    "sessiongate",
		Audience:  gjwt.ClaimStrings{"other-api"},
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}})
	if _, err := m.Verify(wrongAudience); err == nil {
		t.Fatal("expected wrong audience to fail")
	}

	withinLeeway := sign(Claims{UID: "u", RegisteredClaims: gjwt.RegisteredClaims{
		Issuer:    "sessiongate",
		Audience:  gjwt.ClaimStrings{"api"},
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(-15 * time.Second)),
	}})
	if _, err := m.Verify(withinLeeway); err != nil {
		t.Fatalf("expected token within leeway to pass: %v", err)
	}

	futureIAT := sign(Claims{UID: "u", RegisteredClaims: gjwt.RegisteredClaims{
		Issuer:    "sessiongate",
		Audience:  gjwt.ClaimStrings{"api"},
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Hour)),
		IssuedAt:  gjwt.NewNumericDate(time.Now().Add(time.Hour)),
	}})
	if _, err := m.Verify(futureIAT); err == nil {
		t.Fatal("expected far-future iat to fail")
	}
}

func TestVerifyUnknownKidFails(t *testing.T) {
	pub1, priv1 := newEdKeys(t)
	pub2, _ := newEdKeys(t)
	m, err := NewManager(Config{
		TTL:           time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv1,
		PublicKey:     pub1,
		KeyID:         "k1",
		VerifyKeys:    map[string][]byte{"k1": pub1},
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := Claims{UID: "u", RegisteredClaims: gjwt.RegisteredClaims{ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute))}}
	tok := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, claims)
	tok.Header["kid"] = "k2"
	token, err := tok.SignedString(priv1)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := m.Verify(token); err == nil {
		t.Fatal("expected unknown kid failure")
	}

	good, _, err := m.Issue("u")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(good); err != nil {
		t.Fatalf("expected known kid token to pass: %v", err)
	}

	m2, _ := NewManager(Config{TTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub2, VerifyKeys: map[string][]byte{"k2": pub2}})
	if _, err := m2.Verify(good); err == nil {
		t.Fatal("expected verify failure with mismatched key set")
	}
}

func TestHS256RotationVerifiesRetiredSecret(t *testing.T) {
	oldSecret := []byte("old-secret-0123456789abcdef012345")
	newSecret := []byte("new-secret-0123456789abcdef012345")

	before, err := NewManager(Config{TTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: oldSecret, KeyID: "2025"})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	oldToken, _, err := before.Issue("u")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	after, err := NewManager(Config{
		TTL:           time.Minute,
		SigningMethod: MethodHS256,
		PrivateKey:    newSecret,
		KeyID:         "2026",
		VerifyKeys:    map[string][]byte{"2025": oldSecret},
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, err := after.Verify(oldToken); err != nil {
		t.Fatalf("expected retired secret to verify: %v", err)
	}
	newToken, _, err := after.Issue("u")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := after.Verify(newToken); err != nil {
		t.Fatalf("expected current secret to verify: %v", err)
	}
	if _, err := before.Verify(newToken); err == nil {
		t.Fatal("expected token signed with the new secret to fail under the old key set")
	}

	if _, err := NewManager(Config{
		TTL:           time.Minute,
		SigningMethod: MethodHS256,
		PrivateKey:    newSecret,
		VerifyKeys:    map[string][]byte{"2025": oldSecret},
	}); err == nil {
		t.Fatal("expected VerifyKeys without KeyID to fail")
	}
	if _, err := NewManager(Config{
		TTL:           time.Minute,
		SigningMethod: MethodHS256,
		PrivateKey:    newSecret,
		KeyID:         "2026",
		VerifyKeys:    map[string][]byte{"2025": []byte("short")},
	}); err == nil {
		t.Fatal("expected short retired secret to fail")
	}
}
