package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const defaultTokenTTL = 30 * 24 * time.Hour

// Issuer creates and verifies signed session tokens. Every issued token is
// backed by a Token row; deleting the row revokes the session even while the
// signature is still valid.
type Issuer struct {
	store  Store
	keys   *KeyProvider
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer constructs an Issuer signing with keys and persisting through
// store.
func NewIssuer(store Store, keys *KeyProvider, issuer string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &Issuer{
		store:  store,
		keys:   keys,
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue creates a Token record for user and returns the signed artifact. The
// claims carry the token UUID as subject so decode resolves a revocable row,
// not the user directly.
func (i *Issuer) Issue(ctx context.Context, user User, device, location string) (string, Token, error) {
	priv, _, err := i.keys.Keys()
	if err != nil {
		return "", Token{}, err
	}
	now := i.now().UTC()
	rec := Token{
		TokenID:   uuid.NewString(),
		UserID:    user.UserID,
		IssuedAt:  now,
		ExpiresAt: now.Add(i.ttl),
		Device:    device,
		Location:  location,
	}
	if err := i.store.Tokens(ctx).Create(ctx, &rec); err != nil {
		return "", Token{}, err
	}
	claims := jwt.RegisteredClaims{
		Issuer:    i.issuer,
		Subject:   rec.TokenID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(rec.ExpiresAt),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(priv)
	if err != nil {
		return "", Token{}, err
	}
	return signed, rec, nil
}

// Decode verifies the signed artifact and resolves it to its token row and
// owning user. A missing row means the token was revoked; a missing user
// means the account was deleted — both surface as ErrInvalidToken.
func (i *Issuer) Decode(ctx context.Context, raw string) (Token, User, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Token{}, User{}, ErrInvalidToken
	}
	_, pub, err := i.keys.Keys()
	if err != nil {
		return Token{}, User{}, err
	}
	claims := jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodRS256 {
			return nil, ErrInvalidToken
		}
		return pub, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Token{}, User{}, ErrTokenExpired
		}
		return Token{}, User{}, ErrInvalidToken
	}
	if !parsed.Valid || claims.Subject == "" {
		return Token{}, User{}, ErrInvalidToken
	}
	if i.issuer != "" && claims.Issuer != i.issuer {
		return Token{}, User{}, ErrInvalidToken
	}
	rec, err := i.store.Tokens(ctx).Find(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Token{}, User{}, ErrInvalidToken
		}
		return Token{}, User{}, err
	}
	if i.now().After(rec.ExpiresAt) {
		return Token{}, User{}, ErrTokenExpired
	}
	user, err := i.store.Users(ctx).Find(ctx, rec.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Token{}, User{}, ErrInvalidToken
		}
		return Token{}, User{}, err
	}
	return *rec, *user, nil
}

// Revoke deletes a single token row.
func (i *Issuer) Revoke(ctx context.Context, tokenID string) error {
	return i.store.Tokens(ctx).Delete(ctx, tokenID)
}

// RevokeAll deletes every token owned by user.
func (i *Issuer) RevokeAll(ctx context.Context, userID string) error {
	return i.store.Tokens(ctx).DeleteByUser(ctx, userID)
}

// CleanupExpired removes tokens past their expiry. It runs opportunistically
// as a side task attached to signin, not on a schedule.
func (i *Issuer) CleanupExpired(ctx context.Context) (int, error) {
	return i.store.Tokens(ctx).DeleteExpired(ctx, i.now().UTC())
}

// StripBearer removes an optional bearer prefix from an auth header value.
// Tokens without the prefix are accepted as-is for backward compatibility.
func StripBearer(header string) string {
	header = strings.TrimSpace(header)
	for _, prefix := range []string{"Bearer: ", "Bearer "} {
		if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
			return strings.TrimSpace(header[len(prefix):])
		}
	}
	return header
}
