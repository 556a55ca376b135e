package pos

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"cine-pos/internal/cart"
	"cine-pos/internal/models"
	"cine-pos/internal/payment"
)

var ErrSessionNotFound = errors.New("till session not found")

// Session is one live till session: exactly one cart, one tender set and an
// optionally linked loyalty customer. It is owned by a single terminal and
// never shared, so it carries no locking of its own.
type Session struct {
	ID        string
	CashierID string
	Customer  *models.Customer
	Cart      *cart.Cart
	Tenders   *payment.Reconciler
}

func NewSession(cashierID string) *Session {
	return &Session{
		ID:        uuid.NewString(),
		CashierID: cashierID,
		Cart:      cart.New(),
		Tenders:   payment.NewReconciler(),
	}
}

// SessionManager tracks the open till sessions of this process.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessionManager() *SessionManager {
	return &SessionManager{sessions: make(map[string]*Session)}
}

func (m *SessionManager) Open(cashierID string) *Session {
	sess := NewSession(cashierID)
	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()
	return sess
}

// Attach registers a session under a previously issued id, for a till
// reconnecting after a restart or a dropped session map. If the session is
// still live the existing one is returned.
func (m *SessionManager) Attach(id, cashierID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[id]; ok {
		return sess
	}
	sess := &Session{
		ID:        id,
		CashierID: cashierID,
		Cart:      cart.New(),
		Tenders:   payment.NewReconciler(),
	}
	m.sessions[id] = sess
	return sess
}

func (m *SessionManager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (m *SessionManager) Close(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}
