package tokens

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sketchcode/backend/internal/config"
	"github.com/sketchcode/backend/internal/models"
)

// AccessClaims carries the identity embedded in a short-lived access
// token.
type AccessClaims struct {
	UserID   uuid.UUID `json:"userID"`
	Email    string    `json:"email"`
	Username string    `json:"username"`
	FullName string    `json:"fullName"`
	jwt.RegisteredClaims
}

// RefreshClaims carries only the user id; everything else is re-read
// from the store when the token is exchanged.
type RefreshClaims struct {
	UserID uuid.UUID `json:"userID"`
	jwt.RegisteredClaims
}

// Pair is one issuance of both tokens.
type Pair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Issuer signs and verifies access and refresh tokens. The two token
// kinds use separate secrets and separate lifetimes; there is no
// revocation list, revocation happens by overwriting the refresh token
// stored on the user record.
type Issuer struct {
	cfg config.JWTConfig
}

func NewIssuer(cfg config.JWTConfig) *Issuer {
	return &Issuer{cfg: cfg}
}

func (i *Issuer) GenerateAccessToken(user *models.User) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		UserID:   user.ID,
		Email:    user.Email,
		Username: user.Username,
		FullName: user.FullName,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(i.cfg.AccessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   user.ID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(i.cfg.AccessSecret))
}

func (i *Issuer) GenerateRefreshToken(user *models.User) (string, error) {
	now := time.Now()
	claims := RefreshClaims{
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(i.cfg.RefreshTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   user.ID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(i.cfg.RefreshSecret))
}

func (i *Issuer) GeneratePair(user *models.User) (*Pair, error) {
	accessToken, err := i.GenerateAccessToken(user)
	if err != nil {
		return nil, err
	}
	refreshToken, err := i.GenerateRefreshToken(user)
	if err != nil {
		return nil, err
	}
	return &Pair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func (i *Issuer) ValidateAccessToken(tokenString string) (*AccessClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(i.cfg.AccessSecret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid access token")
	}

	return claims, nil
}

func (i *Issuer) ValidateRefreshToken(tokenString string) (*RefreshClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &RefreshClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(i.cfg.RefreshSecret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*RefreshClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid refresh token")
	}

	return claims, nil
}
