package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUser(t *testing.T) {
	user, err := CreateUser("alice", "alice@example.com", "supersecret")
	require.NoError(t, err)

	assert.Equal(t, "alice", user.Name)
	assert.Equal(t, ROLE_USER, user.Role)
	assert.Equal(t, STATUS_INACTIVE, user.Status)
	assert.NotEqual(t, "supersecret", user.Password)
	assert.True(t, user.CheckPassword("supersecret"))
	assert.False(t, user.CheckPassword("wrong"))
}

func TestCreateUserValidation(t *testing.T) {
	tests := []struct {
		name     string
		username string
		email    string
		password string
	}{
		{"short name", "ab", "a@example.com", "supersecret"},
		{"invalid email", "alice", "not-an-email", "supersecret"},
		{"short password", "alice", "alice@example.com", "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CreateUser(tt.username, tt.email, tt.password)
			assert.Error(t, err)
		})
	}
}

func TestGenerateActivationToken(t *testing.T) {
	user := &User{}
	require.NoError(t, user.GenerateActivationToken())

	assert.Len(t, user.ActivationToken, 32)
	require.NotNil(t, user.ActivationSentAt)

	previous := user.ActivationToken
	require.NoError(t, user.GenerateActivationToken())
	assert.NotEqual(t, previous, user.ActivationToken)
}

func TestUserRoleAndStatusHelpers(t *testing.T) {
	user := &User{Role: ROLE_ADMIN, Status: STATUS_ACTIVE}
	assert.True(t, user.IsAdmin())
	assert.True(t, user.IsActive())

	user = &User{Role: ROLE_USER, Status: STATUS_DISABLED}
	assert.False(t, user.IsAdmin())
	assert.False(t, user.IsActive())
}

func TestSetPassword(t *testing.T) {
	user := &User{}
	require.NoError(t, user.SetPassword("newpassword"))
	assert.True(t, user.CheckPassword("newpassword"))
}
