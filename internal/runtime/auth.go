package runtime

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/mohammad-safakhou/folio/config"
)

// NewTokenHeader carries a renewed token back to the caller.
const NewTokenHeader = "X-New-Token"

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("invalid token")
)

// Claims is the payload of an operator session token.
type Claims struct {
	UID  string `json:"uid"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Username returns the subject the token was issued to.
func (c *Claims) Username() string { return c.RegisteredClaims.Subject }

// Remaining is the validity left at now.
func (c *Claims) Remaining(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return c.ExpiresAt.Time.Sub(now)
}

// TokenIssuer signs and verifies HS256 session tokens.
type TokenIssuer struct {
	Secret           []byte
	TTL              time.Duration
	RefreshThreshold time.Duration

	now func() time.Time
}

func NewTokenIssuer(cfg config.AuthConfig) *TokenIssuer {
	return &TokenIssuer{
		Secret:           []byte(cfg.JWTSecret),
		TTL:              cfg.TokenTTL,
		RefreshThreshold: cfg.RefreshThreshold,
	}
}

func (t *TokenIssuer) clock() time.Time {
	if t.now != nil {
		return t.now()
	}
	return time.Now()
}

// Issue signs a full-duration token for subject.
func (t *TokenIssuer) Issue(subject, role string) (string, time.Time, error) {
	now := t.clock()
	exp := now.Add(t.TTL)
	claims := Claims{
		UID:  subject,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Parse verifies signature and expiry.
func (t *TokenIssuer) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(tok *jwt.Token) (interface{}, error) {
		return t.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.clock),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !parsed.Valid || claims.RegisteredClaims.Subject == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// EchoAuthMiddleware validates the bearer token and, when less than the
// refresh threshold remains, attaches a renewed token in X-New-Token.
func EchoAuthMiddleware(issuer *TokenIssuer, logf func(format string, args ...any)) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tok := extractToken(c)
			if tok == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing authorization header")
			}
			claims, err := issuer.Parse(tok)
			if errors.Is(err, ErrTokenExpired) {
				return echo.NewHTTPError(http.StatusUnauthorized, "Token expired")
			}
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
			}

			if claims.Remaining(issuer.clock()) < issuer.RefreshThreshold {
				fresh, _, err := issuer.Issue(claims.Username(), claims.Role)
				if err == nil {
					c.Response().Header().Set(NewTokenHeader, fresh)
				} else if logf != nil {
					logf("token refresh for %s failed: %v", claims.Username(), err)
				}
			}

			reqCtx := ContextWithSubject(c.Request().Context(), claims.Username())
			c.Set("user_id", claims.Username())
			c.Set("role", claims.Role)
			c.SetRequest(c.Request().WithContext(reqCtx))
			return next(c)
		}
	}
}

func extractToken(c echo.Context) string {
	h := c.Request().Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// ContextWithSubject stores the authenticated username on ctx.
func ContextWithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey{}, subject)
}

type subjectKey struct{}

// SubjectFromContext returns the JWT subject if stored in context via middleware.
func SubjectFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	if v := ctx.Value(subjectKey{}); v != nil {
		if s, ok := v.(string); ok {
			return s, true
		}
	}
	return "", false
}
