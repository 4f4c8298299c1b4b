package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultAccountTokenTTL = 7 * 24 * time.Hour
	defaultGuestTokenTTL   = 30 * 24 * time.Hour
	guestIDByteLength      = 16
)

var (
	errMissingSigningSecret = errors.New("signing secret must be provided")
	errMissingAccountID     = errors.New("account identifier must be provided")

	// ErrInvalidCredential indicates the token failed signature or claim checks.
	ErrInvalidCredential = errors.New("auth: invalid credential")
	// ErrExpiredCredential indicates the token is past its expiry.
	ErrExpiredCredential = errors.New("auth: credential expired")
)

// credentialClaims carries either a registered account subject or a guest marker.
type credentialClaims struct {
	GuestID string `json:"guestId,omitempty"`
	IsGuest bool   `json:"isGuest,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuerConfig configures credential issuance and verification.
type TokenIssuerConfig struct {
	SigningSecret   []byte
	Issuer          string
	Audience        string
	AccountTokenTTL time.Duration
	GuestTokenTTL   time.Duration
	Clock           func() time.Time
}

// TokenIssuer issues and resolves signed bearer credentials for accounts and guests.
type TokenIssuer struct {
	config TokenIssuerConfig
	clock  func() time.Time
}

// NewTokenIssuer constructs a TokenIssuer with sane defaults.
func NewTokenIssuer(cfg TokenIssuerConfig) *TokenIssuer {
	accountTTL := cfg.AccountTokenTTL
	if accountTTL <= 0 {
		accountTTL = defaultAccountTokenTTL
	}
	guestTTL := cfg.GuestTokenTTL
	if guestTTL <= 0 {
		guestTTL = defaultGuestTokenTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &TokenIssuer{
		config: TokenIssuerConfig{
			SigningSecret:   cfg.SigningSecret,
			Issuer:          cfg.Issuer,
			Audience:        cfg.Audience,
			AccountTokenTTL: accountTTL,
			GuestTokenTTL:   guestTTL,
			Clock:           clock,
		},
		clock: clock,
	}
}

// IssueAccountCredential produces a signed credential for the registered account.
func (i *TokenIssuer) IssueAccountCredential(accountID string) (string, error) {
	if accountID == "" {
		return "", errMissingAccountID
	}
	return i.sign(credentialClaims{}, accountID, i.config.AccountTokenTTL)
}

// IssueGuestCredential mints a fresh guest identifier and returns it alongside
// a signed credential carrying it. Nothing is persisted for the guest.
func (i *TokenIssuer) IssueGuestCredential() (string, string, error) {
	guestID, err := newGuestID()
	if err != nil {
		return "", "", err
	}
	claims := credentialClaims{GuestID: guestID, IsGuest: true}
	token, err := i.sign(claims, guestID, i.config.GuestTokenTTL)
	if err != nil {
		return "", "", err
	}
	return token, guestID, nil
}

// Resolve verifies the credential and returns the identity it asserts.
func (i *TokenIssuer) Resolve(tokenString string) (Identity, error) {
	if len(i.config.SigningSecret) == 0 {
		return Identity{}, errMissingSigningSecret
	}

	claims := &credentialClaims{}
	parsed, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("unexpected signing algorithm: %s", token.Method.Alg())
			}
			return i.config.SigningSecret, nil
		},
		jwt.WithAudience(i.config.Audience),
		jwt.WithIssuer(i.config.Issuer),
		jwt.WithTimeFunc(i.clock),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrExpiredCredential
		}
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	if parsed == nil || !parsed.Valid {
		return Identity{}, ErrInvalidCredential
	}

	if claims.IsGuest {
		if claims.GuestID == "" {
			return Identity{}, ErrInvalidCredential
		}
		return GuestIdentity(claims.GuestID), nil
	}
	if claims.Subject == "" {
		return Identity{}, ErrInvalidCredential
	}
	return AccountIdentity(claims.Subject), nil
}

func (i *TokenIssuer) sign(claims credentialClaims, subject string, ttl time.Duration) (string, error) {
	if len(i.config.SigningSecret) == 0 {
		return "", errMissingSigningSecret
	}

	now := i.clock().UTC()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    i.config.Issuer,
		Audience:  []string{i.config.Audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl).UTC()),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.config.SigningSecret)
}

func newGuestID() (string, error) {
	buffer := make([]byte, guestIDByteLength)
	if _, err := rand.Read(buffer); err != nil {
		return "", err
	}
	return hex.EncodeToString(buffer), nil
}
