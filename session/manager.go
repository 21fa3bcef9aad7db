// Package session holds the signed-in user and the state of the audit they
// are working on.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/uxsense/backend/analyzer"
	"github.com/uxsense/backend/retrieval"
	"github.com/uxsense/backend/store"
)

// IdentityKey is the store key holding the signed-in user
const IdentityKey = "uxsenseai_user"

var validate = validator.New()

var (
	// ErrUnauthenticated is returned when nobody is signed in
	ErrUnauthenticated = errors.New("session: not signed in")
	// ErrBusy is returned when the same kind of operation is already running
	ErrBusy = errors.New("session: operation already in progress")
	// ErrNoResult is returned when an export is requested before any analysis
	ErrNoResult = errors.New("session: no analysis result")
)

// UserIdentity is the signed-in user. The email is not verified.
type UserIdentity struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// AuditService runs one analysis request
type AuditService interface {
	Analyze(ctx context.Context, req *analyzer.Request) (*analyzer.AnalysisResult, error)
}

// RetrievalRecorder receives the outcome of every retrieval
type RetrievalRecorder interface {
	RecordRetrieval(failed bool)
}

// Manager owns the identity store and the active session
type Manager struct {
	mu       sync.RWMutex
	kv       store.KV
	identity *UserIdentity
	current  *Session

	audit     AuditService
	retriever retrieval.Retriever
	recorder  RetrievalRecorder
	logger    *zap.Logger
}

// NewManager creates a manager with nobody signed in. audit may be nil when
// no provider is configured; analyses then fail with an AnalysisError.
func NewManager(kv store.KV, audit AuditService, retriever retrieval.Retriever, recorder RetrievalRecorder, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		kv:        kv,
		audit:     audit,
		retriever: retriever,
		recorder:  recorder,
		logger:    logger.Named("session"),
	}
}

// Restore loads a previously persisted identity. A missing or unreadable
// identity leaves the manager signed out.
func (m *Manager) Restore(ctx context.Context) (*UserIdentity, error) {
	data, err := m.kv.Get(ctx, IdentityKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to restore identity: %w", err)
	}

	var identity UserIdentity
	if err := json.Unmarshal(data, &identity); err != nil || identity.Email == "" {
		m.logger.Warn("discarding unreadable identity", zap.Error(err))
		return nil, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.identity = &identity
	m.current = m.newSession()

	m.logger.Info("identity restored", zap.String("email", identity.Email))
	return &identity, nil
}

// Login persists the identity and starts a fresh session. A blank name
// defaults to the upper-cased local part of the email.
func (m *Manager) Login(ctx context.Context, email, name string) (*UserIdentity, error) {
	email = strings.TrimSpace(email)
	if err := validate.Var(email, "required,email"); err != nil {
		return nil, &analyzer.ValidationError{Field: "email", Message: "Please provide a valid email address"}
	}

	name = strings.TrimSpace(name)
	if name == "" {
		local, _, _ := strings.Cut(email, "@")
		name = strings.ToUpper(local)
	}
	identity := &UserIdentity{Email: email, Name: name}

	data, err := json.Marshal(identity)
	if err != nil {
		return nil, err
	}
	if err := m.kv.Set(ctx, IdentityKey, data); err != nil {
		return nil, fmt.Errorf("failed to persist identity: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.identity = identity
	m.current = m.newSession()

	m.logger.Info("signed in", zap.String("email", email))
	return identity, nil
}

// Logout removes the persisted identity and discards the session with its
// result.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.kv.Delete(ctx, IdentityKey); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to remove identity: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		m.current.wizard.Reset()
	}
	m.identity = nil
	m.current = nil

	m.logger.Info("signed out")
	return nil
}

// Identity returns the signed-in user, if any
func (m *Manager) Identity() (UserIdentity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.identity == nil {
		return UserIdentity{}, false
	}
	return *m.identity, true
}

// Current returns the active session
func (m *Manager) Current() (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil, ErrUnauthenticated
	}
	return m.current, nil
}

func (m *Manager) newSession() *Session {
	return newSession(m.audit, m.retriever, m.recorder, m.logger)
}
