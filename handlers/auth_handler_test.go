package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"college-voting-backend/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	router, env := SetupTestEnvironment(t)
	ClearTables(env.DB)

	w := doJSON(router, "POST", "/api/auth/register", "", gin.H{
		"roll_number": "CS-2026-001",
		"email":       "alice@college.edu",
		"full_name":   "Alice Example",
		"password":    "supersecret1",
	})

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var user models.User
	require.NoError(t, env.DB.Where("email = ?", "alice@college.edu").First(&user).Error)
	assert.Equal(t, "CS-2026-001", user.RollNumber)
	assert.Equal(t, models.RoleStudent, user.Role)
	assert.True(t, user.IsActive)
	assert.NotEqual(t, "supersecret1", user.HashedPassword)

	// registration issues an OTP and a login token
	var otpCount, tokenCount int64
	env.DB.Model(&models.OTP{}).Where("user_id = ?", user.ID).Count(&otpCount)
	env.DB.Model(&models.LoginToken{}).Where("user_id = ?", user.ID).Count(&tokenCount)
	assert.Equal(t, int64(1), otpCount)
	assert.Equal(t, int64(1), tokenCount)

	// both mails went out through the mock sender
	assert.Equal(t, "alice@college.edu", env.Mail.LastOTPRecipient)
	assert.Len(t, env.Mail.LastOTPCode, 6)
	assert.Contains(t, env.Mail.LastLoginURL, "/login?token=")
}

func TestRegister_DuplicateEmail(t *testing.T) {
	router, env := SetupTestEnvironment(t)
	ClearTables(env.DB)

	createTestUser(t, env, "bob@college.edu", "CS-2026-002")

	w := doJSON(router, "POST", "/api/auth/register", "", gin.H{
		"roll_number": "CS-2026-099",
		"email":       "bob@college.edu",
		"full_name":   "Bob Clone",
		"password":    "supersecret1",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRegister_DuplicateRollNumber(t *testing.T) {
	router, env := SetupTestEnvironment(t)
	ClearTables(env.DB)

	createTestUser(t, env, "carol@college.edu", "CS-2026-003")

	w := doJSON(router, "POST", "/api/auth/register", "", gin.H{
		"roll_number": "CS-2026-003",
		"email":       "other@college.edu",
		"full_name":   "Carol Clone",
		"password":    "supersecret1",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRegister_InvalidInput(t *testing.T) {
	router, env := SetupTestEnvironment(t)
	ClearTables(env.DB)

	tests := []struct {
		name string
		body gin.H
	}{
		{"missing email", gin.H{"roll_number": "R1", "full_name": "X", "password": "supersecret1"}},
		{"bad email", gin.H{"roll_number": "R1", "email": "nope", "full_name": "X", "password": "supersecret1"}},
		{"short password", gin.H{"roll_number": "R1", "email": "x@y.edu", "full_name": "X", "password": "short"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(router, "POST", "/api/auth/register", "", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestLogin(t *testing.T) {
	router, env := SetupTestEnvironment(t)
	ClearTables(env.DB)

	createTestUser(t, env, "dave@college.edu", "CS-2026-004")

	w := doJSON(router, "POST", "/api/auth/login", "", gin.H{
		"email":    "dave@college.edu",
		"password": "password123",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["access_token"])
	assert.Equal(t, "bearer", resp["token_type"])
}

func TestLogin_WrongPassword(t *testing.T) {
	router, env := SetupTestEnvironment(t)
	ClearTables(env.DB)

	createTestUser(t, env, "eve@college.edu", "CS-2026-005")

	w := doJSON(router, "POST", "/api/auth/login", "", gin.H{
		"email":    "eve@college.edu",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogin_InactiveAccount(t *testing.T) {
	router, env := SetupTestEnvironment(t)
	ClearTables(env.DB)

	user, _ := createTestUser(t, env, "frank@college.edu", "CS-2026-006")
	env.DB.Model(user).Update("is_active", false)

	w := doJSON(router, "POST", "/api/auth/login", "", gin.H{
		"email":    "frank@college.edu",
		"password": "password123",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestLoginWithToken_SingleUse(t *testing.T) {
	router, env := SetupTestEnvironment(t)
	ClearTables(env.DB)

	user, _ := createTestUser(t, env, "grace@college.edu", "CS-2026-007")

	userSvc := env.Users
	token, err := userSvc.IssueLoginToken(user.ID)
	require.NoError(t, err)

	w := doJSON(router, "POST", "/api/auth/login-token", "", gin.H{"token": token})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// a login link token is single use
	w = doJSON(router, "POST", "/api/auth/login-token", "", gin.H{"token": token})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthMe(t *testing.T) {
	router, env := SetupTestEnvironment(t)
	ClearTables(env.DB)

	_, token := createTestUser(t, env, "heidi@college.edu", "CS-2026-008")

	w := doJSON(router, "GET", "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var got models.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "heidi@college.edu", got.Email)

	// no token
	w = doJSON(router, "GET", "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
