/*
Package auth is the identity provider for the loyalty engine.

PURPOSE:
  Authenticates customers against their stored bcrypt credential hash
  and issues/validates signed, time-limited bearer tokens. The core
  never sees tokens; the HTTP middleware resolves the token to a
  subject (the customer email) and threads it through the request
  context explicitly - there is no ambient security context.

TOKENS:
  HS256 JWTs carrying subject ("sub"), issued-at ("iat"), and expiry
  ("exp"). The default lifetime is one hour.

SEE ALSO:
  - api/server.go: Where Middleware is mounted
  - loyalty/errors.go: KindUnauthorized / ErrInvalidCredentials
*/
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/warp/loyalty-engine/loyalty"
)

// DefaultTokenTTL is the token lifetime used when none is configured.
const DefaultTokenTTL = time.Hour

// Service authenticates customers and manages bearer tokens.
type Service struct {
	customers loyalty.CustomerStore
	secret    []byte
	ttl       time.Duration
}

// NewService creates an identity service over the given customer store.
// A zero ttl uses DefaultTokenTTL.
func NewService(customers loyalty.CustomerStore, secret []byte, ttl time.Duration) *Service {
	if ttl == 0 {
		ttl = DefaultTokenTTL
	}
	return &Service{customers: customers, secret: secret, ttl: ttl}
}

// =============================================================================
// CREDENTIALS
// =============================================================================

// HashPassword returns the bcrypt hash to store at registration.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Authenticate resolves a customer by email and verifies the password.
// Unknown email and wrong password are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*loyalty.Customer, error) {
	customer, err := s.customers.GetCustomerByEmail(ctx, email)
	if err != nil {
		return nil, loyalty.E(loyalty.KindInternal, "authentication error", err)
	}
	if customer == nil {
		return nil, loyalty.E(loyalty.KindUnauthorized, "invalid credentials", loyalty.ErrInvalidCredentials)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(customer.PasswordHash), []byte(password)); err != nil {
		return nil, loyalty.E(loyalty.KindUnauthorized, "invalid credentials", loyalty.ErrInvalidCredentials)
	}
	return customer, nil
}

// =============================================================================
// TOKENS
// =============================================================================

// IssueToken signs a token for the given subject.
func (s *Service) IssueToken(subject string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(s.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateToken reports whether the token is correctly signed and unexpired.
func (s *Service) ValidateToken(token string) bool {
	_, err := s.Subject(token)
	return err == nil
}

// Subject parses the token and returns its subject.
func (s *Service) Subject(token string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return "", errors.New("invalid token")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", errors.New("token has no subject")
	}
	return sub, nil
}

// =============================================================================
// HTTP MIDDLEWARE
// =============================================================================

type ctxKey int

const subjectKey ctxKey = 0

// Middleware enforces a bearer token and injects the subject into the
// request context. Absence or invalidity yields 401.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			unauthorized(w, "missing authorization")
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			unauthorized(w, "invalid authorization header")
			return
		}
		subject, err := s.Subject(parts[1])
		if err != nil {
			unauthorized(w, "invalid token")
			return
		}
		ctx := context.WithValue(r.Context(), subjectKey, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SubjectFromContext returns the authenticated subject, if any.
func SubjectFromContext(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(subjectKey).(string)
	return subject, ok
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}
