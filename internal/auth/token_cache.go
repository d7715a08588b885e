package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-gigs/internal/logger"
)

const (
	tokenKeyPrefix = "auth:token:"
	// TokenExpiryBuffer keeps cached claims from outliving the token.
	TokenExpiryBuffer = 30 * time.Second
)

// CachedVerifier remembers verified claims in Redis until shortly before the
// token expires.
type CachedVerifier struct {
	Next   Verifier
	Client *redis.Client
	MaxTTL time.Duration
	Logger *logger.Logger
	now    func() time.Time
}

func NewCachedVerifier(next Verifier, client *redis.Client, maxTTL time.Duration, log *logger.Logger) *CachedVerifier {
	if maxTTL <= 0 {
		maxTTL = 10 * time.Minute
	}
	return &CachedVerifier{Next: next, Client: client, MaxTTL: maxTTL, Logger: log, now: time.Now}
}

func tokenKey(rawToken string) string {
	sum := sha256.Sum256([]byte(rawToken))
	return tokenKeyPrefix + hex.EncodeToString(sum[:])
}

func (c *CachedVerifier) Verify(ctx context.Context, rawToken string) (Claims, error) {
	key := tokenKey(rawToken)
	if cached, err := c.Client.Get(ctx, key).Result(); err == nil {
		var claims Claims
		if err := json.Unmarshal([]byte(cached), &claims); err == nil && c.now().Before(claims.ExpiresAt) {
			return claims, nil
		}
	} else if err != redis.Nil {
		c.Logger.Warn("AUTH", fmt.Sprintf("token cache read failed: %v", err))
	}

	claims, err := c.Next.Verify(ctx, rawToken)
	if err != nil {
		return Claims{}, err
	}

	ttl := claims.ExpiresAt.Sub(c.now()) - TokenExpiryBuffer
	if ttl > c.MaxTTL {
		ttl = c.MaxTTL
	}
	if ttl <= 0 {
		return claims, nil
	}
	data, err := json.Marshal(claims)
	if err != nil {
		return claims, nil
	}
	if err := c.Client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.Logger.Warn("AUTH", fmt.Sprintf("token cache write failed: %v", err))
	}
	return claims, nil
}
