package service

import (
	"context"
	"regexp"
	"strings"

	"sleep-better/internal/domain"
)

var (
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

// Authenticator is the external auth service.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*domain.Credentials, error)
	Register(ctx context.Context, username, email, password string) (*domain.Credentials, error)
}

// AuthService validates credentials locally before delegating to the
// external auth service. It never stores anything itself.
type AuthService struct {
	auth Authenticator
}

func NewAuthService(auth Authenticator) *AuthService {
	return &AuthService{auth: auth}
}

func (s *AuthService) Login(ctx context.Context, username, password string) (*domain.Credentials, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	creds, err := s.auth.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}
	return normalizeCredentials(creds, username)
}

func (s *AuthService) Register(ctx context.Context, username, email, password string) (*domain.Credentials, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if len(username) < 3 || len(username) > 50 {
		return nil, domain.ErrInvalidInput
	}
	if !usernameRegex.MatchString(username) {
		return nil, domain.ErrInvalidInput
	}
	if !emailRegex.MatchString(email) || len(email) > 255 {
		return nil, domain.ErrInvalidInput
	}
	if len(password) < 8 || len(password) > 100 {
		return nil, domain.ErrInvalidInput
	}

	creds, err := s.auth.Register(ctx, username, email, password)
	if err != nil {
		return nil, err
	}
	return normalizeCredentials(creds, username)
}

// normalizeCredentials fills in the username when the auth service only
// returned a token, and rejects responses without one.
func normalizeCredentials(creds *domain.Credentials, username string) (*domain.Credentials, error) {
	if creds == nil || creds.Token == "" {
		return nil, domain.ErrInvalidCredentials
	}
	if creds.Username == "" {
		creds.Username = username
	}
	return creds, nil
}
