package jwt

import (
	"context"
	"time"

	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/user"
	"github.com/go-chi/jwtauth/v5"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const (
	TokenTypeAccess = "access"
	TokenTypeSSE    = "sse"
)

// sseTokenTTL bounds the query-string token accepted by the event stream.
const sseTokenTTL = 5 * time.Minute

type Service interface {
	GenerateAccessToken(claims user.Claims) (token string, expiresAt int64, err error)
	GenerateSSEToken(claims user.Claims) (token string, expiresIn int, err error)
	ValidateSSEToken(tokenString string) (user.Claims, error)
	JWTAuth() *jwtauth.JWTAuth
}

type JWTService struct {
	accessTokenExpirationTime time.Duration
	tokenAuth                 *jwtauth.JWTAuth
}

func (j *JWTService) JWTAuth() *jwtauth.JWTAuth {
	return j.tokenAuth
}

func NewJWTService(secretKey string, accessTokenExpirationTime time.Duration) Service {
	return &JWTService{
		accessTokenExpirationTime: accessTokenExpirationTime,
		tokenAuth:                 jwtauth.New("HS256", []byte(secretKey), nil, jwt.WithAcceptableSkew(30*time.Second)),
	}
}

func (j *JWTService) encode(claims user.Claims, tokenType string, ttl time.Duration) (string, int64, error) {
	expiresAt := time.Now().Add(ttl).Unix()
	_, tokenString, err := j.tokenAuth.Encode(map[string]interface{}{
		"user_id":   claims.UserID,
		"school_id": claims.SchoolID,
		"role":      string(claims.Role),
		"type":      tokenType,
		"exp":       expiresAt,
	})
	return tokenString, expiresAt, err
}

func (j *JWTService) GenerateAccessToken(claims user.Claims) (token string, expiresAt int64, err error) {
	return j.encode(claims, TokenTypeAccess, j.accessTokenExpirationTime)
}

// GenerateSSEToken generates a short-lived token for SSE connections
func (j *JWTService) GenerateSSEToken(claims user.Claims) (token string, expiresIn int, err error) {
	token, _, err = j.encode(claims, TokenTypeSSE, sseTokenTTL)
	if err != nil {
		return "", 0, err
	}
	return token, int(sseTokenTTL.Seconds()), nil
}

// ValidateSSEToken validates an SSE token and returns its claims
func (j *JWTService) ValidateSSEToken(tokenString string) (user.Claims, error) {
	token, err := jwtauth.VerifyToken(j.tokenAuth, tokenString)
	if err != nil {
		return user.Claims{}, err
	}

	tokenType, ok := token.Get("type")
	if !ok || tokenType != TokenTypeSSE {
		return user.Claims{}, user.ErrInvalidToken
	}

	claims, err := token.AsMap(context.Background())
	if err != nil {
		return user.Claims{}, user.ErrInvalidToken
	}
	return user.ClaimsFromMap(claims)
}
