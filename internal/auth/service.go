package auth

import (
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hooktide/hooktide/internal/config"
)

var (
	ErrAuthDisabled       = errors.New("authentication is not configured")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// RoleAdmin is the only role: the dashboard has a single operator account.
const RoleAdmin = "admin"

// Session is the result of a successful login.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
}

// Service authenticates the configured admin account and mints tokens for it.
type Service struct {
	jwt          *JWTService
	username     string
	passwordHash string
}

// NewService wires the admin credentials from config. Auth stays disabled
// until both a JWT secret and a password hash are configured.
func NewService(cfg config.AuthConfig) *Service {
	return &Service{
		jwt:          NewJWTService(cfg.JWT),
		username:     cfg.AdminUsername,
		passwordHash: cfg.AdminPasswordHash,
	}
}

// Enabled reports whether login can succeed at all.
func (s *Service) Enabled() bool {
	return len(s.jwt.secret) > 0 && s.passwordHash != ""
}

// Login verifies the credentials and returns a session token.
func (s *Service) Login(username, password string) (*Session, error) {
	if !s.Enabled() {
		return nil, ErrAuthDisabled
	}

	if username != s.username {
		// Burn a bcrypt comparison anyway so unknown usernames take as long
		// as wrong passwords.
		_ = VerifyPassword(password, s.passwordHash)
		return nil, ErrInvalidCredentials
	}

	if err := VerifyPassword(password, s.passwordHash); err != nil {
		log.Warn().Str("username", username).Msg("Failed login attempt")
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := s.jwt.GenerateAccessToken(username, RoleAdmin)
	if err != nil {
		return nil, err
	}

	log.Info().Str("username", username).Msg("User logged in")

	return &Session{
		Token:     token,
		ExpiresAt: expiresAt,
		Username:  username,
		Role:      RoleAdmin,
	}, nil
}

// Validate checks a bearer token and returns its claims.
func (s *Service) Validate(token string) (*Claims, error) {
	if !s.Enabled() {
		return nil, ErrAuthDisabled
	}
	return s.jwt.ValidateAccessToken(token)
}
