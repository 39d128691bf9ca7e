package app

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateSigner(t *testing.T) {
	now := time.Date(2026, time.June, 1, 9, 0, 0, 0, time.UTC)
	s := newStateSigner("secret")
	s.now = func() time.Time { return now }

	state, err := s.Issue("worker-1")
	require.NoError(t, err)

	got, err := s.Verify(state)
	require.NoError(t, err)
	assert.Equal(t, "worker-1", got)

	other := newStateSigner("other")
	other.now = s.now
	_, err = other.Verify(state)
	assert.ErrorIs(t, err, errInvalidState)

	forged, err := s.Issue("worker-2")
	require.NoError(t, err)
	head, sig := strings.Split(forged, "."), strings.Split(state, ".")
	_, err = s.Verify(head[0] + "." + head[1] + "." + sig[2])
	assert.ErrorIs(t, err, errInvalidState)

	now = now.Add(stateTTL + time.Minute)
	_, err = s.Verify(state)
	assert.ErrorIs(t, err, errInvalidState)
}

func TestStateSigner_RandomKeyWithoutSecret(t *testing.T) {
	a, b := newStateSigner(""), newStateSigner("")
	state, err := a.Issue("worker-1")
	require.NoError(t, err)
	_, err = b.Verify(state)
	assert.ErrorIs(t, err, errInvalidState)
}
