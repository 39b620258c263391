package handlers_test

import (
	"net/http"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront/internal/models"
)

var resetTokenPattern = regexp.MustCompile(`Reset token: ([0-9a-f]{64})`)

func TestForgotPasswordUnknownEmail(t *testing.T) {
	h := newHarness(t)

	resp := h.do(http.MethodPost, "/api/auth/forgot-password", "", map[string]any{"email": "nobody@example.com"})
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, true, resp.Body["success"])
	assert.Empty(t, h.mailer.Sent())

	invalid := h.do(http.MethodPost, "/api/auth/forgot-password", "", map[string]any{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, invalid.Status)
	assert.Equal(t, "Invalid email format", invalid.Error())
}

func TestPasswordResetFlow(t *testing.T) {
	h := newHarness(t)
	acct := h.createUser(models.RoleUser)

	known := h.do(http.MethodPost, "/api/auth/forgot-password", "", map[string]any{"email": acct.User.Email})
	unknown := h.do(http.MethodPost, "/api/auth/forgot-password", "", map[string]any{"email": "ghost@example.com"})
	require.Equal(t, http.StatusOK, known.Status)
	assert.Equal(t, known.Body, unknown.Body, "responses do not reveal whether an account exists")

	sent := h.mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, []string{acct.User.Email}, sent[0].To)
	match := resetTokenPattern.FindStringSubmatch(sent[0].Body)
	require.Len(t, match, 2, sent[0].Body)
	token := match[1]

	weak := h.do(http.MethodPost, "/api/auth/reset-password", "", map[string]any{"token": token, "password": "short"})
	assert.Equal(t, http.StatusBadRequest, weak.Status)

	bogus := h.do(http.MethodPost, "/api/auth/reset-password", "", map[string]any{"token": "deadbeef", "password": "Fresh1!password"})
	assert.Equal(t, http.StatusBadRequest, bogus.Status)
	assert.Equal(t, "Invalid or expired reset token", bogus.Error())

	reset := h.do(http.MethodPost, "/api/auth/reset-password", "", map[string]any{"token": token, "password": "Fresh1!password"})
	require.Equal(t, http.StatusOK, reset.Status, reset.Body)

	reused := h.do(http.MethodPost, "/api/auth/reset-password", "", map[string]any{"token": token, "password": "Other1!password"})
	assert.Equal(t, http.StatusBadRequest, reused.Status)
	assert.Equal(t, "Invalid or expired reset token", reused.Error())

	login := h.do(http.MethodPost, "/api/auth/login", "", map[string]any{"email": acct.User.Email, "password": "Fresh1!password"})
	assert.Equal(t, http.StatusOK, login.Status)
}

func TestForgotPasswordSupersedesOlderTokens(t *testing.T) {
	h := newHarness(t)
	acct := h.createUser(models.RoleUser)

	for i := 0; i < 2; i++ {
		resp := h.do(http.MethodPost, "/api/auth/forgot-password", "", map[string]any{"email": acct.User.Email})
		require.Equal(t, http.StatusOK, resp.Status)
	}
	sent := h.mailer.Sent()
	require.Len(t, sent, 2)
	first := resetTokenPattern.FindStringSubmatch(sent[0].Body)[1]
	second := resetTokenPattern.FindStringSubmatch(sent[1].Body)[1]

	stale := h.do(http.MethodPost, "/api/auth/reset-password", "", map[string]any{"token": first, "password": "Fresh1!password"})
	assert.Equal(t, http.StatusBadRequest, stale.Status)

	fresh := h.do(http.MethodPost, "/api/auth/reset-password", "", map[string]any{"token": second, "password": "Fresh1!password"})
	assert.Equal(t, http.StatusOK, fresh.Status)
}

func TestForgotPasswordIsRateLimited(t *testing.T) {
	h := newHarness(t)
	acct := h.createUser(models.RoleUser)

	for i := 0; i < 3; i++ {
		resp := h.do(http.MethodPost, "/api/auth/forgot-password", "", map[string]any{"email": acct.User.Email})
		require.Equal(t, http.StatusOK, resp.Status)
	}
	limited := h.do(http.MethodPost, "/api/auth/forgot-password", "", map[string]any{"email": acct.User.Email})
	assert.Equal(t, http.StatusTooManyRequests, limited.Status)
	assert.NotEmpty(t, limited.Body["resetTime"])
	assert.Len(t, h.mailer.Sent(), 3)
}
