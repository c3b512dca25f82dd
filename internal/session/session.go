package session

import (
	"crypto/rand"
	"encoding/base64"
	"sync"
)

// Session is the slice of caller-provided session state the comment flow
// needs: a single anti-forgery token that is consumed on submission.
type Session interface {
	FormToken() string
	SetFormToken(token string)
	ClearFormToken()
}

// NewToken generates a random anti-forgery token.
func NewToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Memory is an in-process Session, used by the CLI tools and tests.
type Memory struct {
	mu    sync.Mutex
	token string
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) FormToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

func (m *Memory) SetFormToken(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
}

func (m *Memory) ClearFormToken() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
}
