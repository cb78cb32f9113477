package service

import (
	"sync"

	"go.uber.org/zap"
)

// Reconnect states. One session per user; transitions are
// idle -> prompting -> reconnecting -> idle.
const (
	ReconnectIdle         = "idle"
	ReconnectPrompting    = "prompting"
	ReconnectReconnecting = "reconnecting"
)

type reconnectSession struct {
	state        string
	message      string
	continuation func()
}

// ReconnectSupervisor tracks users whose mailbox credentials went
// stale mid-operation. It holds the failed operation as a continuation
// and replays it exactly once after the user saves a fresh credential.
type ReconnectSupervisor struct {
	mu       sync.Mutex
	sessions map[int]*reconnectSession
	logger   *zap.Logger
}

func NewReconnectSupervisor(logger *zap.Logger) *ReconnectSupervisor {
	return &ReconnectSupervisor{
		sessions: make(map[int]*reconnectSession),
		logger:   logger,
	}
}

// CredentialInvalid records an authentication failure. The first
// failure opens a prompting session and stores the continuation; later
// failures while prompting refresh the message but keep the original
// continuation, so only the first blocked operation replays.
func (s *ReconnectSupervisor) CredentialInvalid(userID int, message string, continuation func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.sessions[userID]
	if sess == nil || sess.state == ReconnectIdle {
		s.sessions[userID] = &reconnectSession{
			state:        ReconnectPrompting,
			message:      message,
			continuation: continuation,
		}
		s.logger.Warn("Mailbox credential invalid, prompting user to reconnect",
			zap.Int("user_id", userID),
		)
		return
	}
	if sess.state == ReconnectPrompting {
		sess.message = message
	}
}

// StartReconnect marks the user as mid-reconnect. Only meaningful from
// prompting; reports whether the transition happened.
func (s *ReconnectSupervisor) StartReconnect(userID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.sessions[userID]
	if sess == nil || sess.state != ReconnectPrompting {
		return false
	}
	sess.state = ReconnectReconnecting
	return true
}

// Resolve closes the session after a successful credential save and
// fires the stored continuation, at most once. The continuation runs
// outside the lock.
func (s *ReconnectSupervisor) Resolve(userID int) {
	s.mu.Lock()
	sess := s.sessions[userID]
	var cont func()
	if sess != nil {
		cont = sess.continuation
		delete(s.sessions, userID)
	}
	s.mu.Unlock()

	if cont != nil {
		s.logger.Info("Mailbox reconnected, replaying blocked operation",
			zap.Int("user_id", userID),
		)
		cont()
	}
}

// Dismiss abandons the session without replaying anything.
func (s *ReconnectSupervisor) Dismiss(userID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}

// State returns the user's reconnect state and prompt message.
func (s *ReconnectSupervisor) State(userID int) (state, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.sessions[userID]
	if sess == nil {
		return ReconnectIdle, ""
	}
	return sess.state, sess.message
}
