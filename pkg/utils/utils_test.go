package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword(t *testing.T) {
	BcryptCost = bcrypt.MinCost
	password := "testpassword"
	hashedPassword, err := HashPassword(password)
	require.NoError(t, err)
	assert.NotEmpty(t, hashedPassword)
	assert.NotEqual(t, password, hashedPassword)

	assert.True(t, CheckPasswordHash(password, hashedPassword))
	assert.False(t, CheckPasswordHash("wrongpassword", hashedPassword))
}

func TestIsEmail(t *testing.T) {
	assert.True(t, IsEmail("maria@coletivo.com.br"))
	assert.True(t, IsEmail("another.test@sub.domain.co.uk"))

	assert.False(t, IsEmail("invalid-email"))
	assert.False(t, IsEmail("@example.com"))
	assert.False(t, IsEmail("Maria <maria@coletivo.com.br>"))
}
