package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestReconnectPromptAndResolve(t *testing.T) {
	s := NewReconnectSupervisor(zap.NewNop())

	state, _ := s.State(1)
	assert.Equal(t, ReconnectIdle, state)

	invoked := 0
	s.CredentialInvalid(1, "password rejected", func() { invoked++ })

	state, msg := s.State(1)
	assert.Equal(t, ReconnectPrompting, state)
	assert.Equal(t, "password rejected", msg)

	assert.True(t, s.StartReconnect(1))
	state, _ = s.State(1)
	assert.Equal(t, ReconnectReconnecting, state)

	s.Resolve(1)
	state, _ = s.State(1)
	assert.Equal(t, ReconnectIdle, state)
	assert.Equal(t, 1, invoked)

	// resolving again must not re-run the continuation
	s.Resolve(1)
	assert.Equal(t, 1, invoked)
}

func TestReconnectSecondFailureDoesNotStack(t *testing.T) {
	s := NewReconnectSupervisor(zap.NewNop())

	firstInvoked := 0
	secondInvoked := 0
	s.CredentialInvalid(7, "first failure", func() { firstInvoked++ })
	s.CredentialInvalid(7, "second failure", func() { secondInvoked++ })

	state, msg := s.State(7)
	assert.Equal(t, ReconnectPrompting, state)
	assert.Equal(t, "second failure", msg)

	s.Resolve(7)
	assert.Equal(t, 1, firstInvoked)
	assert.Equal(t, 0, secondInvoked)
}

func TestReconnectDismissDropsContinuation(t *testing.T) {
	s := NewReconnectSupervisor(zap.NewNop())

	invoked := 0
	s.CredentialInvalid(3, "oops", func() { invoked++ })
	s.Dismiss(3)

	state, _ := s.State(3)
	assert.Equal(t, ReconnectIdle, state)

	s.Resolve(3)
	assert.Equal(t, 0, invoked)
}

func TestReconnectStartRequiresPrompt(t *testing.T) {
	s := NewReconnectSupervisor(zap.NewNop())

	assert.False(t, s.StartReconnect(9))

	s.CredentialInvalid(9, "stale token", nil)
	assert.True(t, s.StartReconnect(9))
	// already reconnecting
	assert.False(t, s.StartReconnect(9))
}

func TestReconnectSessionsAreIndependent(t *testing.T) {
	s := NewReconnectSupervisor(zap.NewNop())

	s.CredentialInvalid(1, "user one", nil)

	state, _ := s.State(2)
	assert.Equal(t, ReconnectIdle, state)
}
