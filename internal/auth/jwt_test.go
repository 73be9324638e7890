package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokenRoundtrip(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken("user-1", "a@example.com", "secret", time.Hour)
	req.NoError(err)

	claims, err := ParseToken(token, "secret")
	req.NoError(err)
	req.Equal("user-1", claims.UserID)
	req.Equal("a@example.com", claims.Email)
}

func TestParseToken_WrongSecret(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken("user-1", "a@example.com", "secret", time.Hour)
	req.NoError(err)

	_, err = ParseToken(token, "other-secret")
	req.Error(err)
}

func TestParseToken_Expired(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken("user-1", "a@example.com", "secret", -time.Minute)
	req.NoError(err)

	_, err = ParseToken(token, "secret")
	req.Error(err)
}

func TestParseToken_Garbage(t *testing.T) {
	_, err := ParseToken("not-a-token", "secret")
	require.Error(t, err)
}
