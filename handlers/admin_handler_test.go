package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"college-voting-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminLogin(t *testing.T) {
	router, env := SetupTestEnvironment(t)
	ClearTables(env.DB)

	admin, _ := createTestAdmin(t, env)

	w := doJSON(router, "POST", "/api/admin/login", "", gin.H{
		"email":    admin.Email,
		"password": "admin123",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["access_token"])
	assert.Equal(t, "bearer", resp["token_type"])

	w = doJSON(router, "POST", "/api/admin/login", "", gin.H{
		"email":    admin.Email,
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminRegister(t *testing.T) {
	router, env := SetupTestEnvironment(t)
	ClearTables(env.DB)

	_, adminToken := createTestAdmin(t, env)

	w := doJSON(router, "POST", "/api/admin/register", adminToken, gin.H{
		"email":     "second@test.local",
		"full_name": "Second Admin",
		"password":  "another-secret",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// the new admin can log in
	w = doJSON(router, "POST", "/api/admin/login", "", gin.H{
		"email":    "second@test.local",
		"password": "another-secret",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	// duplicate email is rejected
	w = doJSON(router, "POST", "/api/admin/register", adminToken, gin.H{
		"email":     "second@test.local",
		"full_name": "Clone",
		"password":  "another-secret",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	// creating admins requires an admin token
	w = doJSON(router, "POST", "/api/admin/register", "", gin.H{
		"email":     "third@test.local",
		"full_name": "Third Admin",
		"password":  "another-secret",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminMe(t *testing.T) {
	router, env := SetupTestEnvironment(t)
	ClearTables(env.DB)

	admin, adminToken := createTestAdmin(t, env)

	w := doJSON(router, "GET", "/api/admin/me", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, admin.Email, resp["email"])
}

func TestAdminListUsers(t *testing.T) {
	router, env := SetupTestEnvironment(t)
	ClearTables(env.DB)

	_, adminToken := createTestAdmin(t, env)
	createTestUser(t, env, "a@college.edu", "E-101")
	createTestUser(t, env, "b@college.edu", "E-102")

	w := doJSON(router, "GET", "/api/admin/users", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var users []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &users))
	assert.Len(t, users, 2)
	// password hashes never leave the API
	for _, u := range users {
		_, leaked := u["hashed_password"]
		assert.False(t, leaked)
	}
}

func TestAdminDeactivateUser(t *testing.T) {
	router, env := SetupTestEnvironment(t)
	ClearTables(env.DB)

	_, adminToken := createTestAdmin(t, env)
	user, userToken := createTestUser(t, env, "target@college.edu", "E-103")

	w := doJSON(router, "PUT", "/api/admin/users/"+itoa(user.ID)+"/active", adminToken, gin.H{
		"is_active": false,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// password login is refused for a deactivated account
	w = doJSON(router, "POST", "/api/auth/login", "", gin.H{
		"email":    user.Email,
		"password": "password123",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// an existing token is cut off too
	w = doJSON(router, "GET", "/api/auth/me", userToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// reactivate
	w = doJSON(router, "PUT", "/api/admin/users/"+itoa(user.ID)+"/active", adminToken, gin.H{
		"is_active": true,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, "GET", "/api/auth/me", userToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminSetActive_Validation(t *testing.T) {
	router, env := SetupTestEnvironment(t)
	ClearTables(env.DB)

	_, adminToken := createTestAdmin(t, env)
	user, _ := createTestUser(t, env, "valid@college.edu", "E-104")

	// is_active is required, an empty body is rejected
	w := doJSON(router, "PUT", "/api/admin/users/"+itoa(user.ID)+"/active", adminToken, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, "PUT", "/api/admin/users/999999/active", adminToken, gin.H{"is_active": false})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminDashboardStats(t *testing.T) {
	router, env := SetupTestEnvironment(t)
	ClearTables(env.DB)

	_, adminToken := createTestAdmin(t, env)
	user, _ := createTestUser(t, env, "stats@college.edu", "E-105")
	election, candidates := createTestElection(t, env)

	_, err := env.Votes.Cast(user.ID, election.ID, candidates[0].ID)
	require.NoError(t, err)

	w := doJSON(router, "GET", "/api/admin/stats", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var stats service.DashboardStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.TotalUsers)
	assert.Equal(t, int64(1), stats.TotalElections)
	assert.Equal(t, int64(1), stats.ActiveElections)
	assert.Equal(t, int64(2), stats.TotalCandidates)
	assert.Equal(t, int64(1), stats.TotalVotes)
}

func TestAdminRoutes_RequireAdminToken(t *testing.T) {
	router, env := SetupTestEnvironment(t)
	ClearTables(env.DB)

	_, userToken := createTestUser(t, env, "nope@college.edu", "E-106")

	for _, path := range []string{"/api/admin/me", "/api/admin/users", "/api/admin/stats"} {
		w := doJSON(router, "GET", path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)

		w = doJSON(router, "GET", path, userToken, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}
