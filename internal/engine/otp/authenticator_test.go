// internal/engine/otp/authenticator_test.go
package otp

import (
	"context"
	"testing"
	"time"

	"firmadoc-engine/internal/common/clock"
	"firmadoc-engine/internal/common/database"
	stderr "firmadoc-engine/internal/common/errors"
	"firmadoc-engine/internal/common/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func newTestAuthenticator(t *testing.T, ttl time.Duration, digits int) (*Authenticator, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	store := NewRedisStore(database.NewRedisFromClient(rdb))
	clk := clock.NewFake(time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC))
	return NewAuthenticator(store, clk, logger.NewTestLogger(t), ttl, digits), mr
}

// ==========================
// Issue Tests
// ==========================

func TestAuthenticator_Issue_GeneratesCode(t *testing.T) {
	auth, _ := newTestAuthenticator(t, 10*time.Minute, 6)

	code, err := auth.Issue(context.Background(), "doc-1")
	require.NoError(t, err)
	require.Len(t, code, 6)
	for _, c := range code {
		assert.True(t, c >= '0' && c <= '9', "code must be numeric, got %q", code)
	}
}

func TestAuthenticator_Issue_RespectsDigitsSetting(t *testing.T) {
	for _, digits := range []int{4, 6, 8} {
		auth, _ := newTestAuthenticator(t, 10*time.Minute, digits)
		code, err := auth.Issue(context.Background(), "doc-1")
		require.NoError(t, err)
		assert.Len(t, code, digits)
	}
}

func TestAuthenticator_Issue_ReplacesPriorCode(t *testing.T) {
	auth, _ := newTestAuthenticator(t, 10*time.Minute, 6)
	ctx := context.Background()

	first, err := auth.Issue(ctx, "doc-1")
	require.NoError(t, err)
	second, err := auth.Issue(ctx, "doc-1")
	require.NoError(t, err)

	// The earlier code is no longer accepted once replaced.
	if first != second {
		err = auth.Verify(ctx, "doc-1", first)
		assert.True(t, stderr.IsCode(err, stderr.ErrCodeOTPMismatch))
	}
	assert.NoError(t, auth.Verify(ctx, "doc-1", second))
}

// ==========================
// Verify Tests
// ==========================

func TestAuthenticator_Verify_Success(t *testing.T) {
	auth, _ := newTestAuthenticator(t, 10*time.Minute, 6)
	ctx := context.Background()

	code, err := auth.Issue(ctx, "doc-1")
	require.NoError(t, err)

	assert.NoError(t, auth.Verify(ctx, "doc-1", code))
}

func TestAuthenticator_Verify_Mismatch(t *testing.T) {
	auth, _ := newTestAuthenticator(t, 10*time.Minute, 6)
	ctx := context.Background()

	code, err := auth.Issue(ctx, "doc-1")
	require.NoError(t, err)

	wrong := "000000"
	if wrong == code {
		wrong = "111111"
	}

	err = auth.Verify(ctx, "doc-1", wrong)
	assert.True(t, stderr.IsCode(err, stderr.ErrCodeOTPMismatch))

	// A mismatch does not consume the credential.
	assert.NoError(t, auth.Verify(ctx, "doc-1", code))
}

func TestAuthenticator_Verify_Expired(t *testing.T) {
	auth, mr := newTestAuthenticator(t, 10*time.Minute, 6)
	ctx := context.Background()

	code, err := auth.Issue(ctx, "doc-1")
	require.NoError(t, err)

	mr.FastForward(11 * time.Minute)

	err = auth.Verify(ctx, "doc-1", code)
	assert.True(t, stderr.IsCode(err, stderr.ErrCodeOTPExpired))
}

func TestAuthenticator_Verify_NeverIssued(t *testing.T) {
	auth, _ := newTestAuthenticator(t, 10*time.Minute, 6)

	// Missing and expired credentials are indistinguishable by design.
	err := auth.Verify(context.Background(), "doc-unknown", "123456")
	assert.True(t, stderr.IsCode(err, stderr.ErrCodeOTPExpired))
}

func TestAuthenticator_Verify_AlreadyConsumed(t *testing.T) {
	auth, _ := newTestAuthenticator(t, 10*time.Minute, 6)
	ctx := context.Background()

	code, err := auth.Issue(ctx, "doc-1")
	require.NoError(t, err)
	require.NoError(t, auth.Verify(ctx, "doc-1", code))

	// Replaying the same code is reported as consumed, not expired.
	err = auth.Verify(ctx, "doc-1", code)
	assert.True(t, stderr.IsCode(err, stderr.ErrCodeOTPAlreadyConsumed))
}

func TestAuthenticator_Verify_ConsumedMarkerKeepsTTL(t *testing.T) {
	auth, mr := newTestAuthenticator(t, 10*time.Minute, 6)
	ctx := context.Background()

	code, err := auth.Issue(ctx, "doc-1")
	require.NoError(t, err)
	require.NoError(t, auth.Verify(ctx, "doc-1", code))

	// Once the original TTL elapses the consumed marker goes with it.
	mr.FastForward(11 * time.Minute)
	err = auth.Verify(ctx, "doc-1", code)
	assert.True(t, stderr.IsCode(err, stderr.ErrCodeOTPExpired))
}
