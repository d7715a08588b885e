package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestExtractTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := ExtractTokenFromRequest(r)
	assert.Error(t, err)

	r.Header.Set("Authorization", "Token abc")
	_, err = ExtractTokenFromRequest(r)
	assert.Error(t, err)

	r.Header.Set("Authorization", "bearer abc")
	tok, err := ExtractTokenFromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	r = httptest.NewRequest(http.MethodGet, "/stream?access_token=xyz", nil)
	tok, err = ExtractTokenFromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, "xyz", tok)
}

func TestHMACVerifier(t *testing.T) {
	v := NewHMACVerifier("secret")
	tok, err := v.Sign("user-1", "Sam", time.Now().Add(time.Hour))
	require.NoError(t, err)

	claims, err := v.Verify(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "Sam", claims.Name)

	_, err = NewHMACVerifier("other").Verify(context.Background(), tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := v.Sign("user-1", "", time.Now().Add(-time.Minute))
	require.NoError(t, err)
	_, err = v.Verify(context.Background(), expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	noSub, err := v.Sign("", "", time.Now().Add(time.Hour))
	require.NoError(t, err)
	_, err = v.Verify(context.Background(), noSub)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMiddleware(t *testing.T) {
	v := NewHMACVerifier("secret")
	tok, err := v.Sign("artist-9", "DJ", time.Now().Add(time.Hour))
	require.NoError(t, err)

	var seen string
	h := Middleware(v, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserID(r.Context()) + "/" + UserName(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "artist-9/DJ", seen)
}

func TestOptionalLetsAnonymousThrough(t *testing.T) {
	v := NewHMACVerifier("secret")
	var seen string
	h := Optional(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, seen)
}

type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) Verify(ctx context.Context, rawToken string) (Claims, error) {
	args := m.Called(ctx, rawToken)
	return args.Get(0).(Claims), args.Error(1)
}

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, client
}

func TestCachedVerifierSkipsRepeatVerification(t *testing.T) {
	mr, client := setupTestRedis(t)
	next := new(MockVerifier)
	exp := time.Now().Add(time.Hour)
	next.On("Verify", mock.Anything, "tok").Return(Claims{Subject: "u1", Name: "Sam", ExpiresAt: exp}, nil).Once()

	v := NewCachedVerifier(next, client, 5*time.Minute, nil)
	for i := 0; i < 3; i++ {
		claims, err := v.Verify(context.Background(), "tok")
		require.NoError(t, err)
		assert.Equal(t, "u1", claims.Subject)
	}
	next.AssertNumberOfCalls(t, "Verify", 1)

	ttl := mr.TTL(tokenKey("tok"))
	assert.LessOrEqual(t, ttl, 5*time.Minute)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestCachedVerifierDoesNotCacheFailures(t *testing.T) {
	mr, client := setupTestRedis(t)
	next := new(MockVerifier)
	next.On("Verify", mock.Anything, "bad").Return(Claims{}, ErrInvalidToken)

	v := NewCachedVerifier(next, client, 0, nil)
	for i := 0; i < 2; i++ {
		_, err := v.Verify(context.Background(), "bad")
		assert.ErrorIs(t, err, ErrInvalidToken)
	}
	next.AssertNumberOfCalls(t, "Verify", 2)
	assert.False(t, mr.Exists(tokenKey("bad")))
}

func TestCachedVerifierFallsBackWhenRedisIsDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	next := new(MockVerifier)
	next.On("Verify", mock.Anything, "tok").Return(Claims{Subject: "u1", ExpiresAt: time.Now().Add(time.Hour)}, nil)

	claims, err := NewCachedVerifier(next, client, 0, nil).Verify(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
}
