package auth

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/xid"
	"go.uber.org/zap"

	"gopan-drive/config"
	"gopan-drive/internal/logger"
)

var (
	ErrUserExists         = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUnknownUser        = errors.New("user not found")
	ErrWeakCredentials    = errors.New("username must be 3-50 characters and password at least 6")
)

// User is a registered account.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	LastLoginAt  time.Time `json:"last_login,omitempty"`
}

// Session is what a successful login hands to the rest of the application.
type Session struct {
	Token       string `json:"token"`
	UserID      string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

// Service keeps accounts in memory.
type Service struct {
	cfg *config.JWTConfig

	mu    sync.RWMutex
	users map[string]*User
}

func NewService(cfg *config.JWTConfig) *Service {
	return &Service{cfg: cfg, users: make(map[string]*User)}
}

// Register creates an account and logs it in.
func (s *Service) Register(username, password, email string) (Session, error) {
	username = strings.TrimSpace(username)
	if len(username) < 3 || len(username) > 50 || len(password) < 6 {
		return Session{}, ErrWeakCredentials
	}

	hash, err := HashPassword(password)
	if err != nil {
		return Session{}, err
	}

	s.mu.Lock()
	if _, exists := s.users[username]; exists {
		s.mu.Unlock()
		return Session{}, ErrUserExists
	}
	u := &User{
		ID:           xid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}
	s.users[username] = u
	s.mu.Unlock()

	logger.Info("user registered", zap.String("username", username))
	return s.session(u)
}

// Login checks the password and returns a fresh session.
func (s *Service) Login(username, password string) (Session, error) {
	s.mu.RLock()
	u, ok := s.users[strings.TrimSpace(username)]
	s.mu.RUnlock()
	if !ok || !CheckPassword(password, u.PasswordHash) {
		return Session{}, ErrInvalidCredentials
	}

	s.mu.Lock()
	u.LastLoginAt = time.Now()
	s.mu.Unlock()
	return s.session(u)
}

// User returns a copy of an account.
func (s *Service) User(username string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[username]
	if !ok {
		return User{}, ErrUnknownUser
	}
	return *u, nil
}

// Validate checks a token against the service's secret.
func (s *Service) Validate(token string) (*Claims, error) {
	return ValidateToken(token, s.cfg)
}

func (s *Service) session(u *User) (Session, error) {
	token, err := GenerateToken(u.ID, u.Username, s.cfg)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, UserID: u.ID, Username: u.Username, DisplayName: u.Username}, nil
}
