package composables

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUseTx_NoPool(t *testing.T) {
	_, err := UseTx(context.Background())
	require.ErrorIs(t, err, ErrNoPool)
}

func TestInTx_NoPool(t *testing.T) {
	called := false
	err := InTx(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, ErrNoPool)
	assert.False(t, called)
}

func TestUseLogger_FallsBackToNop(t *testing.T) {
	entry := UseLogger(context.Background())
	require.NotNil(t, entry)

	logger := logrus.New()
	ctx := WithLogger(context.Background(), logrus.NewEntry(logger).WithField("run_id", "r1"))
	assert.Equal(t, "r1", UseLogger(ctx).Data["run_id"])
}

func TestRunID_RoundTrip(t *testing.T) {
	ctx := WithRunID(context.Background(), "abc")
	assert.Equal(t, "abc", UseRunID(ctx))
	assert.Empty(t, UseRunID(context.Background()))
}
