// Package identity verifies ID tokens and reports the signed-in identity to subscribers.
package identity

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Its-donkey/storefront/internal/ui/model"
)

var (
	// ErrInvalidToken covers malformed, expired or badly signed tokens.
	ErrInvalidToken = errors.New("identity: invalid token")
	// ErrMissingToken is returned when a request carries no bearer token.
	ErrMissingToken = errors.New("identity: missing token")
)

// Claims is the ID token payload.
type Claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 ID tokens.
type Verifier struct {
	// key is nil for a claims-only reader.
	key      []byte
	issuer   string
	audience string
	now      func() time.Time
}

// NewVerifier builds a verifier. Empty issuer or audience disables that check.
func NewVerifier(key []byte, issuer, audience string) (*Verifier, error) {
	if len(key) < 32 {
		return nil, errors.New("identity: signing key must be at least 32 bytes")
	}
	return &Verifier{key: key, issuer: issuer, audience: audience, now: time.Now}, nil
}

// NewClaimsReader builds a Verifier that checks expiry, issuer and audience but not the
// signature. The browser build uses it; the profile API verifies signatures server side.
func NewClaimsReader(issuer, audience string) *Verifier {
	return &Verifier{issuer: issuer, audience: audience, now: time.Now}
}

// Verify parses token and returns the identity it names.
func (v *Verifier) Verify(token string) (model.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return model.Identity{}, ErrMissingToken
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	var claims Claims
	var err error
	if v.key == nil {
		err = v.readUnverified(token, &claims, opts)
	} else {
		_, err = jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
			return v.key, nil
		}, opts...)
	}
	if err != nil {
		return model.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return model.Identity{}, fmt.Errorf("%w: subject is required", ErrInvalidToken)
	}
	return model.Identity{UID: claims.Subject, Email: claims.Email, DisplayName: claims.Name}, nil
}

func (v *Verifier) readUnverified(token string, claims *Claims, opts []jwt.ParserOption) error {
	parser := jwt.NewParser(opts...)
	parsed, _, err := parser.ParseUnverified(token, claims)
	if err != nil {
		return err
	}
	if parsed.Method.Alg() != jwt.SigningMethodHS256.Alg() {
		return fmt.Errorf("unexpected signing method %s", parsed.Method.Alg())
	}
	return jwt.NewValidator(opts...).Validate(claims)
}

// Authenticate reads a bearer token from r.
func (v *Verifier) Authenticate(r *http.Request) (model.Identity, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return model.Identity{}, ErrMissingToken
	}
	return v.Verify(token)
}

// MintOptions configures Mint.
type MintOptions struct {
	Issuer   string
	Audience string
	TTL      time.Duration
	Now      time.Time
}

// Mint signs an ID token for identity. It backs local development sign-in.
func Mint(key []byte, identity model.Identity, opts MintOptions) (string, error) {
	if strings.TrimSpace(identity.UID) == "" {
		return "", errors.New("identity: uid is required")
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	claims := Claims{
		Email: identity.Email,
		Name:  identity.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UID,
			Issuer:    opts.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if opts.Audience != "" {
		claims.Audience = jwt.ClaimStrings{opts.Audience}
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
