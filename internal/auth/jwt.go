package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenAccess  = "access"
	tokenRefresh = "refresh"
)

// TokenPair holds access and refresh tokens.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	AccessExp    time.Time `json:"access_expires_at"`
	RefreshExp   time.Time `json:"refresh_expires_at"`
}

// Claims represents JWT payload.
type Claims struct {
	UserID int    `json:"uid"`
	Role   string `json:"role"`
	Type   string `json:"typ"`
	jwt.RegisteredClaims
}

// Marker is the value stored as "marked by" on records saved under c.
func (c Claims) Marker() string {
	return "user-" + strconv.Itoa(c.UserID)
}

// Issuer signs tokens for one issuer and key.
type Issuer struct {
	Name       string
	Key        string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Issue issues signed access and refresh tokens.
func (is Issuer) Issue(userID int, role string) (TokenPair, error) {
	now := time.Now()
	accessExp := now.Add(is.AccessTTL)
	refreshExp := now.Add(is.RefreshTTL)

	accessToken, err := is.sign(userID, role, tokenAccess, now, accessExp)
	if err != nil {
		return TokenPair{}, err
	}
	refreshToken, err := is.sign(userID, role, tokenRefresh, now, refreshExp)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
	}, nil
}

// Refresh exchanges a valid refresh token for a new pair.
func (is Issuer) Refresh(refreshToken string) (TokenPair, error) {
	claims, err := Parse(refreshToken, is.Key, is.Name)
	if err != nil {
		return TokenPair{}, err
	}
	if claims.Type != tokenRefresh {
		return TokenPair{}, errors.New("not a refresh token")
	}
	return is.Issue(claims.UserID, claims.Role)
}

func (is Issuer) sign(userID int, role, typ string, now, exp time.Time) (string, error) {
	claims := Claims{
		UserID: userID,
		Role:   role,
		Type:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    is.Name,
			Subject:   strconv.Itoa(userID),
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(is.Key))
}

// Parse validates a token and returns claims.
func Parse(tokenStr, key, issuer string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(key), nil
	})
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	if issuer != "" && claims.Issuer != issuer {
		return Claims{}, errors.New("issuer mismatch")
	}
	return *claims, nil
}
