package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sleep-better/internal/domain"
	"sleep-better/internal/testutil"
)

func TestAuthService_Login(t *testing.T) {
	backend := testutil.NewMockBackend()
	svc := NewAuthService(backend)

	creds, err := svc.Login(context.Background(), "  alice ", "password")
	require.NoError(t, err)
	assert.Equal(t, "token-alice", creds.Token)
	assert.Equal(t, "alice", creds.Username)
}

func TestAuthService_Login_EmptyFields(t *testing.T) {
	backend := testutil.NewMockBackend()
	called := false
	backend.LoginFunc = func(context.Context, string, string) (*domain.Credentials, error) {
		called = true
		return nil, nil
	}
	svc := NewAuthService(backend)

	_, err := svc.Login(context.Background(), " ", "password")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), "alice", "")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	assert.False(t, called)
}

func TestAuthService_Login_FillsMissingUsername(t *testing.T) {
	backend := testutil.NewMockBackend()
	backend.LoginFunc = func(context.Context, string, string) (*domain.Credentials, error) {
		return &domain.Credentials{Token: "tok"}, nil
	}

	creds, err := NewAuthService(backend).Login(context.Background(), "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, "alice", creds.Username)
}

func TestAuthService_Login_RejectsMissingToken(t *testing.T) {
	backend := testutil.NewMockBackend()
	backend.LoginFunc = func(context.Context, string, string) (*domain.Credentials, error) {
		return &domain.Credentials{Username: "alice"}, nil
	}

	_, err := NewAuthService(backend).Login(context.Background(), "alice", "pw")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestAuthService_Login_PropagatesBackendError(t *testing.T) {
	backend := testutil.NewMockBackend()
	backend.LoginFunc = func(context.Context, string, string) (*domain.Credentials, error) {
		return nil, testutil.ErrMockStorage
	}

	_, err := NewAuthService(backend).Login(context.Background(), "alice", "pw")
	assert.ErrorIs(t, err, testutil.ErrMockStorage)
}

func TestAuthService_Register_Validation(t *testing.T) {
	tests := []struct {
		name     string
		username string
		email    string
		password string
		wantErr  error
	}{
		{"valid", "alice_1", "alice@example.com", "password1", nil},
		{"short_username", "al", "alice@example.com", "password1", domain.ErrInvalidInput},
		{"long_username", strings.Repeat("a", 51), "alice@example.com", "password1", domain.ErrInvalidInput},
		{"bad_username_chars", "alice!", "alice@example.com", "password1", domain.ErrInvalidInput},
		{"bad_email", "alice", "not-an-email", "password1", domain.ErrInvalidInput},
		{"short_password", "alice", "alice@example.com", "short", domain.ErrInvalidInput},
		{"long_password", "alice", "alice@example.com", strings.Repeat("p", 101), domain.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewAuthService(testutil.NewMockBackend())
			creds, err := svc.Register(context.Background(), tt.username, tt.email, tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, creds)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.username, creds.Username)
		})
	}
}

func TestAuthService_Register_UsernameTaken(t *testing.T) {
	backend := testutil.NewMockBackend()
	backend.RegisterFunc = func(context.Context, string, string, string) (*domain.Credentials, error) {
		return nil, domain.ErrUsernameExists
	}

	_, err := NewAuthService(backend).Register(context.Background(), "alice", "alice@example.com", "password1")
	assert.ErrorIs(t, err, domain.ErrUsernameExists)
}
