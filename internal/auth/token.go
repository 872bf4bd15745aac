package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v4"

	"github.com/hitoshi/glowup/internal/model"
)

// ErrInvalidToken は署名不正・期限切れ・形式不正なセッショントークンを表す。
var ErrInvalidToken = errors.New("invalid session token")

// SessionClaims はセッショントークンのクレーム。
// jti にセッションID、sub にユーザーIDを格納する。
type SessionClaims struct {
	jwt.RegisteredClaims
}

// SessionID はトークンが指すセッションIDを返す。
func (c *SessionClaims) SessionID() string { return c.ID }

// UserID はトークンの発行先ユーザーIDを返す。
func (c *SessionClaims) UserID() string { return c.Subject }

// TokenIssuer はセッション行をHS256署名付きのトークンで包む。
// トークン単体では認証を完結させず、検証後に必ずセッション行の存在を確認すること。
type TokenIssuer struct {
	secret []byte
}

// NewTokenIssuer はTokenIssuerを生成する。
func NewTokenIssuer(secret string) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret)}
}

// Issue はセッションに対応する署名付きトークンを発行する。
func (i *TokenIssuer) Issue(session *model.Session) (string, error) {
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.ID,
			Subject:   session.UserID,
			IssuedAt:  jwt.NewNumericDate(session.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return token, nil
}

// Parse はトークンの署名と有効期限を検証し、クレームを返す。
func (i *TokenIssuer) Parse(token string) (*SessionClaims, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.ID == "" || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
