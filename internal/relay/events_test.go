package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvent(t *testing.T) {
	raw := []byte(`{"event":"send-project-message","data":{"projectId":"p1","senderId":"u1","content":"hi","messageType":"text"}}`)

	payload, err := decodeEvent(raw)
	require.NoError(t, err)

	msg, ok := payload.(*SendProjectMessage)
	require.True(t, ok, "expected *SendProjectMessage, got %T", payload)
	assert.Equal(t, "p1", msg.ProjectId)
	assert.Equal(t, "u1", msg.SenderId)
	assert.Equal(t, "hi", msg.Content)
	assert.Equal(t, evSendProjectMessage, msg.inboundEvent())
}

func TestDecodeEventUnknown(t *testing.T) {
	_, err := decodeEvent([]byte(`{"event":"self-destruct","data":{}}`))
	assert.ErrorContains(t, err, "unknown event")
}

func TestDecodeEventMalformed(t *testing.T) {
	_, err := decodeEvent([]byte(`not json`))
	assert.Error(t, err)

	_, err = decodeEvent([]byte(`{"event":"join-user","data":"not an object"}`))
	assert.Error(t, err)
}

func TestDecodeEventEmptyData(t *testing.T) {
	payload, err := decodeEvent([]byte(`{"event":"join-user"}`))
	require.NoError(t, err)
	assert.IsType(t, &JoinUser{}, payload)
}
