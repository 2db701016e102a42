package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestIsRetryableError(t *testing.T) {
	assert.False(t, isRetryableError(ErrNotFound))
	assert.False(t, isRetryableError(fmt.Errorf("wrapped: %w", ErrNotFound)))
	assert.False(t, isRetryableError(context.Canceled))
	assert.True(t, isRetryableError(mongo.CommandError{Code: 189, Message: "primary stepped down"}))
	assert.False(t, isRetryableError(mongo.CommandError{Code: 11000, Message: "duplicate key"}))
	assert.True(t, isRetryableError(errors.New("server selection error: no reachable servers")))
	assert.False(t, isRetryableError(errors.New("bad value")))
}

func TestExecuteDbOperationStopsOnNonRetryable(t *testing.T) {
	calls := 0
	_, err := ExecuteDbOperation(func() (interface{}, error) {
		calls++
		return nil, ErrNotFound
	}, 3)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, calls)
}

func TestExecuteDbOperationReturnsResult(t *testing.T) {
	calls := 0
	got, err := ExecuteDbOperation(func() (interface{}, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("connection reset by peer")
		}
		return "ok", nil
	}, 3)
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 2, calls)
}
