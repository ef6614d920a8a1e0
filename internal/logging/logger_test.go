package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewParsesLevel(t *testing.T) {
	l, err := New("order-api", "test", "debug")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zap.DebugLevel))

	l, err = New("order-api", "test", "nonsense")
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zap.DebugLevel))
}

func TestContextRoundTrip(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	l := zap.New(core)

	ctx, cancel := context.WithCancel(WithContext(context.Background(), l))
	cancel()

	detached := Detach(ctx)
	assert.NoError(t, detached.Err())
	FromContext(detached).Info("hello")
	assert.Equal(t, 1, logs.Len())

	assert.Equal(t, zap.L(), FromContext(context.Background()))
}
