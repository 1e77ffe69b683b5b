package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"edms/internal/domain"
	"edms/internal/domain/models"

	"github.com/golang-jwt/jwt/v5"
)

const issuerName = "edms"

// HMACTokens issues and verifies HS256 access tokens signed with a shared
// secret
type HMACTokens struct {
	secret []byte
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

func NewHMACTokens(secret string, ttl time.Duration, logger *slog.Logger) (*HMACTokens, error) {
	if len(secret) < 32 {
		return nil, errors.New("JWT secret must be at least 32 bytes")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &HMACTokens{
		secret: []byte(secret),
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Issue signs a token whose subject is the user ID
func (h *HMACTokens) Issue(user *models.User) (string, time.Time, error) {
	now := h.now()
	expiresAt := now.Add(h.ttl)
	claims := &models.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuerName,
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email: user.Email,
		Role:  user.Role.String(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

func (h *HMACTokens) keyfunc(*jwt.Token) (any, error) {
	return h.secret, nil
}

// VerifyToken validates an HS256 token issued by Issue
func (h *HMACTokens) VerifyToken(tokenString string) (*models.Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.Claims{}, h.keyfunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuerName),
		jwt.WithTimeFunc(h.now),
	)
	if err != nil || !token.Valid {
		h.logger.Debug("token rejected", "error", err)
		return nil, domain.ErrUnauthorized
	}

	claims, ok := token.Claims.(*models.Claims)
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	if _, err := claims.GetUserID(); err != nil {
		h.logger.Debug("token subject is not a user id", "subject", claims.Subject)
		return nil, domain.ErrUnauthorized
	}
	return claims, nil
}

func (h *HMACTokens) Close() error { return nil }

// ChainVerifier accepts a token if any of its verifiers does
type ChainVerifier []JWTVerifier

func (c ChainVerifier) VerifyToken(tokenString string) (*models.Claims, error) {
	for _, v := range c {
		if claims, err := v.VerifyToken(tokenString); err == nil {
			return claims, nil
		}
	}
	return nil, domain.ErrUnauthorized
}

func (c ChainVerifier) Close() error {
	var errs []error
	for _, v := range c {
		if err := v.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
