package handlers

import (
	"net/http"
	"testing"
	"time"

	"college-voting-backend/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOTPRequestAndVerify(t *testing.T) {
	router, env := SetupTestEnvironment(t)
	ClearTables(env.DB)

	_, token := createTestUser(t, env, "otp1@college.edu", "OTP-001")

	w := doJSON(router, "POST", "/api/otp/request", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	code := env.Mail.LastOTPCode
	require.Len(t, code, 6)

	// wrong code first
	w = doJSON(router, "POST", "/api/otp/verify", token, gin.H{"code": "000000"})
	if code == "000000" {
		t.Skip("generated code collided with the test constant")
	}
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// right code verifies
	w = doJSON(router, "POST", "/api/otp/verify", token, gin.H{"code": code})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// a code cannot be replayed
	w = doJSON(router, "POST", "/api/otp/verify", token, gin.H{"code": code})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOTPReissueInvalidatesPrevious(t *testing.T) {
	router, env := SetupTestEnvironment(t)
	ClearTables(env.DB)

	user, token := createTestUser(t, env, "otp2@college.edu", "OTP-002")

	w := doJSON(router, "POST", "/api/otp/request", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	firstCode := env.Mail.LastOTPCode

	w = doJSON(router, "POST", "/api/otp/resend", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	secondCode := env.Mail.LastOTPCode

	// only one pending row survives
	var count int64
	env.DB.Model(&models.OTP{}).Where("user_id = ? AND is_verified = ?", user.ID, false).Count(&count)
	assert.Equal(t, int64(1), count)

	// the first code is dead even if it differs from the second
	if firstCode != secondCode {
		w = doJSON(router, "POST", "/api/otp/verify", token, gin.H{"code": firstCode})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	}

	w = doJSON(router, "POST", "/api/otp/verify", token, gin.H{"code": secondCode})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestOTPVerify_Expired(t *testing.T) {
	router, env := SetupTestEnvironment(t)
	ClearTables(env.DB)

	user, token := createTestUser(t, env, "otp3@college.edu", "OTP-003")

	code, err := env.OTPs.Issue(user.ID)
	require.NoError(t, err)

	// force the code into the past
	env.DB.Model(&models.OTP{}).Where("user_id = ?", user.ID).
		Update("expires_at", time.Now().Add(-1*time.Minute))

	w := doJSON(router, "POST", "/api/otp/verify", token, gin.H{"code": code})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// the expired row was reaped on the failed verify
	var count int64
	env.DB.Model(&models.OTP{}).Where("user_id = ?", user.ID).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestOTPStatus(t *testing.T) {
	router, env := SetupTestEnvironment(t)
	ClearTables(env.DB)

	_, token := createTestUser(t, env, "otp4@college.edu", "OTP-004")

	w := doJSON(router, "GET", "/api/otp/status", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"pending":false`)

	doJSON(router, "POST", "/api/otp/request", token, nil)

	w = doJSON(router, "GET", "/api/otp/status", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"pending":true`)
}

func TestOTPRequest_RequiresAuth(t *testing.T) {
	router, env := SetupTestEnvironment(t)
	ClearTables(env.DB)

	w := doJSON(router, "POST", "/api/otp/request", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
