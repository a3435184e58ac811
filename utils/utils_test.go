package utils

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/staffrewards/config"
)

// Redis stays unconfigured so every test runs against the in-memory store.
func TestMain(m *testing.M) {
	config.Set(config.AppConfig{JWTSecret: "test-secret", JWTIssuer: "idp.test"})
	os.Exit(m.Run())
}

func TestMemoryStoreExpiry(t *testing.T) {
	s := newMemoryStore()
	s.set("k", "v", -time.Second)
	_, ok := s.get("k")
	assert.False(t, ok)

	assert.True(t, s.setNX("k", "a", time.Minute))
	assert.False(t, s.setNX("k", "b", time.Minute))

	s.delIf("k", "b")
	v, ok := s.get("k")
	require.True(t, ok)
	assert.Equal(t, "a", v)

	s.delIf("k", "a")
	_, ok = s.get("k")
	assert.False(t, ok)
}

func TestKeyLockerExclusive(t *testing.T) {
	ctx := context.Background()
	var l KeyLocker

	token, ok, err := l.TryLock(ctx, "checkin:1:2024-03-13", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.TryLock(ctx, "checkin:1:2024-03-13", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second holder must be refused")

	// Releasing with a foreign token is a no-op.
	require.NoError(t, l.Unlock(ctx, "checkin:1:2024-03-13", "not-mine"))
	_, ok, _ = l.TryLock(ctx, "checkin:1:2024-03-13", time.Minute)
	assert.False(t, ok)

	require.NoError(t, l.Unlock(ctx, "checkin:1:2024-03-13", token))
	token, ok, err = l.TryLock(ctx, "checkin:1:2024-03-13", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, l.Unlock(ctx, "checkin:1:2024-03-13", token))
}

func TestCheckInCodesRotateAndVerify(t *testing.T) {
	ctx := context.Background()
	var codes CheckInCodes

	_, ok, err := codes.Current(ctx, "acme-none")
	require.NoError(t, err)
	assert.False(t, ok)

	code, err := codes.Rotate(ctx, "acme", time.Minute)
	require.NoError(t, err)
	assert.Len(t, code.Code, 12)
	assert.Equal(t, "acme", code.CompanyID)

	valid, err := codes.Verify(ctx, "acme", code.Code)
	require.NoError(t, err)
	assert.True(t, valid)

	valid, err = codes.Verify(ctx, "acme", " "+lower(code.Code)+" ")
	require.NoError(t, err)
	assert.True(t, valid, "codes compare case-insensitively")

	valid, _ = codes.Verify(ctx, "acme", "WRONG")
	assert.False(t, valid)
	valid, _ = codes.Verify(ctx, "acme", "")
	assert.False(t, valid)
	valid, _ = codes.Verify(ctx, "other", code.Code)
	assert.False(t, valid, "codes are scoped to a company")

	next, err := codes.Rotate(ctx, "acme", time.Minute)
	require.NoError(t, err)
	valid, _ = codes.Verify(ctx, "acme", code.Code)
	assert.Equal(t, next.Code == code.Code, valid, "rotation retires the old code")
}

func TestTokenRoundTrip(t *testing.T) {
	signed, err := GenerateToken(Claims{Username: "dana", Role: "admin", CompanyID: "acme", RegisteredClaims: subject("u-1")}, time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(signed)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.Subject)
	assert.Equal(t, "dana", claims.Username)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "acme", claims.CompanyID)
	assert.Equal(t, "idp.test", claims.Issuer)
}

func TestParseTokenRejects(t *testing.T) {
	expired, err := GenerateToken(Claims{RegisteredClaims: subject("u-1")}, -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(expired)
	assert.Error(t, err)

	noSubject, err := GenerateToken(Claims{Username: "x"}, time.Hour)
	require.NoError(t, err)
	_, err = ParseToken(noSubject)
	assert.Error(t, err)

	foreign, err := GenerateToken(Claims{RegisteredClaims: subject("u-1")}, time.Hour)
	require.NoError(t, err)
	_, err = ParseToken(foreign + "x")
	assert.Error(t, err)
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "Coffee voucher", SanitizePlain(" <b>Coffee</b> voucher<script>alert(1)</script> "))
	assert.Equal(t, "<b>Free</b> lunch", Sanitize(`<b>Free</b> lunch<script>alert(1)</script>`))
}

func TestPagination(t *testing.T) {
	p := Pagination(2, 20, 41)
	assert.Equal(t, 3, p["total_pages"])
	assert.Equal(t, int64(41), p["total"])
}

func subject(sub string) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{Subject: sub}
}

func lower(s string) string {
	return strings.ToLower(s)
}
