package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelvault/apiserver/internal/apperr"
)

func TestValidUsername(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"alice", true},
		{"al", false},
		{"alice_lee_2024", true},
		{"alice-lee", false},
		{"abcdefghijklmnopqrstu", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidUsername(tt.in), tt.in)
	}
}

func TestValidPassword(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"Password1", true},
		{"password1", false},
		{"PASSWORD1", false},
		{"Password", false},
		{"Pass1", false},
		{"Password1" + strings.Repeat("x", 63), true},
		{"Password1" + strings.Repeat("x", 64), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidPassword(tt.in), tt.in)
	}
}

type signup struct {
	Username string `json:"username" validate:"required,username"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,password"`
}

func TestStructReportsJSONFieldName(t *testing.T) {
	v := New()

	require.NoError(t, v.Struct(signup{Username: "alice", Email: "alice@example.com", Password: "Password1"}))

	err := v.Struct(signup{Username: "alice", Email: "not-an-email", Password: "Password1"})
	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindValidation, appErr.Kind)
	assert.Equal(t, "email", appErr.Field)
}

func TestValidEmail(t *testing.T) {
	v := New()
	assert.True(t, v.ValidEmail("alice@example.com"))
	assert.False(t, v.ValidEmail("alice"))
}
