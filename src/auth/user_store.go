package auth

import (
	"fmt"
	"sync"
	"time"

	"stratadb/src/helpers"
)

type User struct {
	ID             string
	Username       string
	PasswordHash   PasswordHash
	CreatedAt      time.Time
	LastModifiedAt time.Time
}

// UserStore manages user credentials in memory.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]*User // keyed by username
}

func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]*User)}
}

// AddUser registers a user with a freshly hashed password.
func (s *UserStore) AddUser(username, password string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[username]; exists {
		return nil, fmt.Errorf("user '%s': %w", username, ErrUserAlreadyExists)
	}
	hash, err := hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	now := time.Now()
	user := &User{
		ID:             helpers.GenerateUUID(),
		Username:       username,
		PasswordHash:   hash,
		CreatedAt:      now,
		LastModifiedAt: now,
	}
	s.users[username] = user
	return user, nil
}

// GetUser retrieves a user by username.
func (s *UserStore) GetUser(username string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[username]
	if !exists {
		return nil, fmt.Errorf("user '%s': %w", username, ErrUserNotFound)
	}
	return user, nil
}

// RemoveUser deletes a user.
func (s *UserStore) RemoveUser(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[username]; !exists {
		return fmt.Errorf("user '%s': %w", username, ErrUserNotFound)
	}
	delete(s.users, username)
	return nil
}

// Authenticate verifies a username/password pair.
func (s *UserStore) Authenticate(username, password string) error {
	s.mu.RLock()
	user, exists := s.users[username]
	s.mu.RUnlock()

	if !exists || !verifyPassword(password, user.PasswordHash) {
		return fmt.Errorf("user '%s': %w", username, ErrInvalidCredentials)
	}
	return nil
}
