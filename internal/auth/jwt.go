package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// RoleClient is the only role issued today
const RoleClient = "client"

// DefaultTokenTTL is how long issued tokens stay valid
const DefaultTokenTTL = 24 * time.Hour

// ClaimsContextKey is where Middleware stores validated claims on the echo context
const ClaimsContextKey = "auth.claims"

var (
	ErrInvalidCredentials = errors.New("invalid client credentials")
	ErrMissingToken       = errors.New("missing bearer token")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// JWTClaims represents the claims in our JWT token
type JWTClaims struct {
	ClientID string `json:"client_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Config holds the signing secret and the one set of API client credentials
type Config struct {
	Secret       string
	ClientID     string
	ClientSecret string
	TokenTTL     time.Duration
}

// Validate validates the Config
func (c Config) Validate() error {
	if c.Secret == "" {
		return errors.New("jwt secret is required")
	}
	if c.ClientID == "" || c.ClientSecret == "" {
		return errors.New("api client id and secret are required")
	}
	return nil
}

// Authenticator issues and validates HS256 client tokens
type Authenticator struct {
	secret       []byte
	clientID     string
	clientSecret string
	ttl          time.Duration
	now          func() time.Time
}

// NewAuthenticator creates a new Authenticator
func NewAuthenticator(config Config) (*Authenticator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	ttl := config.TokenTTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	return &Authenticator{
		secret:       []byte(config.Secret),
		clientID:     config.ClientID,
		clientSecret: config.ClientSecret,
		ttl:          ttl,
		now:          time.Now,
	}, nil
}

// TTL returns the lifetime of issued tokens
func (a *Authenticator) TTL() time.Duration {
	return a.ttl
}

// Authenticate checks client credentials and issues a token for them
func (a *Authenticator) Authenticate(clientID, clientSecret string) (string, time.Time, error) {
	idOK := subtle.ConstantTimeCompare([]byte(clientID), []byte(a.clientID)) == 1
	secretOK := subtle.ConstantTimeCompare([]byte(clientSecret), []byte(a.clientSecret)) == 1
	if !idOK || !secretOK {
		return "", time.Time{}, ErrInvalidCredentials
	}
	return a.GenerateClientToken(clientID)
}

// GenerateClientToken generates a JWT token for an API client
func (a *Authenticator) GenerateClientToken(clientID string) (string, time.Time, error) {
	now := a.now()
	expiresAt := now.Add(a.ttl)
	claims := &JWTClaims{
		ClientID: clientID,
		Role:     RoleClient,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   clientID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken validates a JWT token and returns the claims
func (a *Authenticator) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Role != RoleClient || claims.ClientID == "" {
		return nil, fmt.Errorf("%w: unexpected claims", ErrInvalidToken)
	}
	return claims, nil
}

// BearerToken extracts the token from an "Authorization: Bearer ..." header
func BearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(token), nil
}

// Middleware rejects requests without a valid bearer token. Handlers can
// read the claims with ClaimsFrom.
func (a *Authenticator) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, err := BearerToken(c.Request())
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "JWT token is required in Authorization header")
			}

			claims, err := a.ValidateToken(token)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired JWT token")
			}

			c.Set(ClaimsContextKey, claims)
			return next(c)
		}
	}
}

// ClaimsFrom returns the claims stored by Middleware
func ClaimsFrom(c echo.Context) (*JWTClaims, bool) {
	claims, ok := c.Get(ClaimsContextKey).(*JWTClaims)
	return claims, ok
}
