package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectNATSWithoutURLIsNop(t *testing.T) {
	pub, err := ConnectNATS("", "test", nil)
	require.NoError(t, err)

	_, ok := pub.(NopPublisher)
	assert.True(t, ok)
	assert.NoError(t, pub.Publish(context.Background(), "attendance.marked", map[string]string{"a": "b"}))
	pub.Close()
}

func TestConnectNATSUnreachable(t *testing.T) {
	_, err := ConnectNATS("nats://127.0.0.1:1", "test", nil)
	assert.Error(t, err)
}
