package users

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUser(t *testing.T) {
	testCases := []struct {
		name            string
		userName        string
		email           string
		password        string
		confirmPassword string
		wantErr         error
	}{
		{
			name:            "valid user",
			userName:        "Alice",
			email:           "alice@example.com",
			password:        "password1",
			confirmPassword: "password1",
		},
		{
			name:            "empty name",
			email:           "alice@example.com",
			password:        "password1",
			confirmPassword: "password1",
			wantErr:         ErrUserNameEmpty,
		},
		{
			name:            "empty email",
			userName:        "Alice",
			password:        "password1",
			confirmPassword: "password1",
			wantErr:         ErrUserEmailEmpty,
		},
		{
			name:            "malformed email",
			userName:        "Alice",
			email:           "not-an-email",
			password:        "password1",
			confirmPassword: "password1",
			wantErr:         ErrUserEmailInvalid,
		},
		{
			name:            "empty password",
			userName:        "Alice",
			email:           "alice@example.com",
			confirmPassword: "password1",
			wantErr:         ErrUserPasswdEmpty,
		},
		{
			name:            "password mismatch",
			userName:        "Alice",
			email:           "alice@example.com",
			password:        "password1",
			confirmPassword: "password2",
			wantErr:         ErrUserPasswdMismatch,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			user, err := CreateUser(tc.userName, tc.email, tc.password, tc.confirmPassword)

			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.userName, user.Name)
			assert.Equal(t, tc.email, user.Email)
			assert.False(t, user.IsAdmin)
			assert.True(t, user.Balance.IsZero())
			assert.NotEqual(t, tc.password, user.PasswordHash)
		})
	}
}

func TestCheckPassword(t *testing.T) {
	user, err := CreateUser("Alice", "alice@example.com", "password1", "password1")
	require.NoError(t, err)

	require.NoError(t, user.CheckPassword("password1"))
	require.Error(t, user.CheckPassword("wrong-password"))
}
