package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUser_ResetTokenExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	deadline := now.Add(time.Minute)
	past := now.Add(-time.Second)

	require.False(t, (&User{}).ResetTokenExpired(now), "no deadline never expires")
	require.False(t, (&User{ResetTokenExpiresAt: &deadline}).ResetTokenExpired(now))
	require.True(t, (&User{ResetTokenExpiresAt: &now}).ResetTokenExpired(now), "expiry is inclusive")
	require.True(t, (&User{ResetTokenExpiresAt: &past}).ResetTokenExpired(now))
}

func TestUser_PublicHidesSecrets(t *testing.T) {
	token := "reset-token"
	pic := "abc.png"
	u := &User{
		ID:           "u-1",
		Username:     "alice",
		Email:        "a@x.com",
		PasswordHash: "$2a$10$hash",
		ProfilePic:   &pic,
		ResetToken:   &token,
	}

	raw, err := json.Marshal(u.Public())
	require.NoError(t, err)
	require.JSONEq(t, `{"id":"u-1","username":"alice","email":"a@x.com","profile_pic":"abc.png"}`, string(raw))

	raw, err = json.Marshal(u.Public().Identity())
	require.NoError(t, err)
	require.JSONEq(t, `{"id":"u-1","username":"alice","email":"a@x.com"}`, string(raw))
}

func TestUser_HasAvatar(t *testing.T) {
	empty := ""
	pic := "x.jpg"
	require.False(t, (&User{}).HasAvatar())
	require.False(t, (&User{ProfilePic: &empty}).HasAvatar())
	require.True(t, (&User{ProfilePic: &pic}).HasAvatar())
}
