package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRequest(t *testing.T) {
	r := NewRequest(RequestTypeStart, -100, 7)

	assert.NotEmpty(t, r.RequestID)
	assert.Equal(t, int64(-100), r.ChatID)
	assert.Equal(t, 7, r.MessageID)
	assert.False(t, r.EnqueuedAt.IsZero())
	assert.True(t, r.IsCommand())

	other := NewRequest(RequestTypeReply, -100, 8)
	assert.NotEqual(t, r.RequestID, other.RequestID)
	assert.False(t, other.IsCommand())
}
