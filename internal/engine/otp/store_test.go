// internal/engine/otp/store_test.go
package otp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"firmadoc-engine/internal/common/database"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStore_Put_SetsTTL(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	store := NewRedisStore(database.NewRedisFromClient(rdb))

	cred := Credential{Code: "123456", IssuedAt: time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)}
	payload, err := json.Marshal(cred)
	require.NoError(t, err)

	mock.ExpectSet("otp:doc-1", payload, 10*time.Minute).SetVal("OK")

	err = store.Put(context.Background(), "doc-1", cred, 10*time.Minute)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_Get_MissingKey(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	store := NewRedisStore(database.NewRedisFromClient(rdb))

	mock.ExpectGet("otp:doc-1").RedisNil()

	_, err := store.Get(context.Background(), "doc-1")
	assert.ErrorIs(t, err, ErrNoCredential)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_Get_RoundTrip(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	store := NewRedisStore(database.NewRedisFromClient(rdb))

	stored := Credential{Code: "654321", IssuedAt: time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC), Consumed: true}
	payload, err := json.Marshal(stored)
	require.NoError(t, err)

	mock.ExpectGet("otp:doc-1").SetVal(string(payload))

	cred, err := store.Get(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, stored, cred)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_MarkConsumed_PreservesTTL(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	store := NewRedisStore(database.NewRedisFromClient(rdb))

	issued := Credential{Code: "123456", IssuedAt: time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)}
	issuedPayload, err := json.Marshal(issued)
	require.NoError(t, err)

	consumed := issued
	consumed.Consumed = true
	consumedPayload, err := json.Marshal(consumed)
	require.NoError(t, err)

	mock.ExpectGet("otp:doc-1").SetVal(string(issuedPayload))
	mock.ExpectSetArgs("otp:doc-1", consumedPayload, redis.SetArgs{KeepTTL: true}).SetVal("OK")

	err = store.MarkConsumed(context.Background(), "doc-1")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
