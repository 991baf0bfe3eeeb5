package action

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	a := New(TypeParticipate, map[string]any{"challengeId": 5})

	assert.NotEmpty(t, a.ID)
	assert.Equal(t, TypeParticipate, a.Type)
	assert.Equal(t, 0, a.RetryCount)
	assert.InDelta(t, time.Now().UnixMilli(), a.QueuedAt, 1000)
	assert.Equal(t, 5, a.Payload["challengeId"])
}

func TestNew_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		a := New(TypeParticipate, nil)
		assert.False(t, seen[a.ID], "duplicate id %s", a.ID)
		seen[a.ID] = true
	}
}

func TestJSONRoundTrip(t *testing.T) {
	original := New(TypeUpdateChallenge, map[string]any{"challengeId": float64(7), "title": "new title"})
	original.RetryCount = 2
	original.LastError = "network unreachable"

	data, err := original.ToJSON()
	require.NoError(t, err)

	decoded, err := FromJSON(data)
	require.NoError(t, err)

	assert.Equal(t, original.ID, decoded.ID)
	assert.Equal(t, original.Type, decoded.Type)
	assert.Equal(t, original.Payload, decoded.Payload)
	assert.Equal(t, original.RetryCount, decoded.RetryCount)
	assert.Equal(t, original.QueuedAt, decoded.QueuedAt)
	assert.Equal(t, original.LastError, decoded.LastError)
}

func TestFromJSON_Invalid(t *testing.T) {
	_, err := FromJSON("{not json")
	assert.Error(t, err)
}

func TestAge(t *testing.T) {
	a := New(TypeParticipate, nil)
	a.QueuedAt = time.Now().Add(-90 * time.Second).UnixMilli()

	age := a.Age(time.Now())
	assert.InDelta(t, 90*time.Second, age, float64(time.Second))
}
