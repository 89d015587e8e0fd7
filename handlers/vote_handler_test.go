package handlers

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"sync"
	"testing"

	"college-voting-backend/models"
	"college-voting-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCastVote(t *testing.T) {
	router, env := SetupTestEnvironment(t)
	ClearTables(env.DB)

	_, token := createTestUser(t, env, "voter1@college.edu", "V-001")
	election, candidates := createTestElection(t, env)

	w := doJSON(router, "POST", "/api/votes", token, gin.H{
		"election_id":  election.ID,
		"candidate_id": candidates[0].ID,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var count int64
	env.DB.Model(&models.Vote{}).Where("election_id = ?", election.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestCastVote_Twice(t *testing.T) {
	router, env := SetupTestEnvironment(t)
	ClearTables(env.DB)

	_, token := createTestUser(t, env, "voter2@college.edu", "V-002")
	election, candidates := createTestElection(t, env)

	w := doJSON(router, "POST", "/api/votes", token, gin.H{
		"election_id":  election.ID,
		"candidate_id": candidates[0].ID,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	// a second ballot in the same election is rejected even for a
	// different candidate
	w = doJSON(router, "POST", "/api/votes", token, gin.H{
		"election_id":  election.ID,
		"candidate_id": candidates[1].ID,
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	var count int64
	env.DB.Model(&models.Vote{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestCastVote_UnknownElection(t *testing.T) {
	router, env := SetupTestEnvironment(t)
	ClearTables(env.DB)

	_, token := createTestUser(t, env, "voter3@college.edu", "V-003")

	w := doJSON(router, "POST", "/api/votes", token, gin.H{
		"election_id":  9999,
		"candidate_id": 1,
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCastVote_CandidateFromOtherElection(t *testing.T) {
	router, env := SetupTestEnvironment(t)
	ClearTables(env.DB)

	_, token := createTestUser(t, env, "voter4@college.edu", "V-004")
	election, _ := createTestElection(t, env)
	_, otherCandidates := createTestElection(t, env)

	w := doJSON(router, "POST", "/api/votes", token, gin.H{
		"election_id":  election.ID,
		"candidate_id": otherCandidates[0].ID,
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCastVote_InactiveElection(t *testing.T) {
	router, env := SetupTestEnvironment(t)
	ClearTables(env.DB)

	_, token := createTestUser(t, env, "voter5@college.edu", "V-005")
	election, candidates := createTestElection(t, env)
	env.DB.Model(election).Update("is_active", false)

	w := doJSON(router, "POST", "/api/votes", token, gin.H{
		"election_id":  election.ID,
		"candidate_id": candidates[0].ID,
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCastVote_Concurrent(t *testing.T) {
	_, env := SetupTestEnvironment(t)
	ClearTables(env.DB)

	user, _ := createTestUser(t, env, "voter6@college.edu", "V-006")
	election, candidates := createTestElection(t, env)

	const attempts = 8
	var wg sync.WaitGroup
	results := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			_, err := env.Votes.Cast(user.ID, election.ID, candidates[slot%2].ID)
			results[slot] = err
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range results {
		if err == nil {
			successes++
		} else {
			assert.ErrorIs(t, err, service.ErrAlreadyVoted)
		}
	}
	assert.Equal(t, 1, successes, "exactly one concurrent cast must win")

	var count int64
	env.DB.Model(&models.Vote{}).Where("user_id = ?", user.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestResults_OrderingAndZeroVotes(t *testing.T) {
	router, env := SetupTestEnvironment(t)
	ClearTables(env.DB)

	election, candidates := createTestElection(t, env)

	// third candidate gets no votes at all
	third := models.Candidate{ElectionID: election.ID, Name: "Carol", SymbolNumber: 3}
	require.NoError(t, env.DB.Create(&third).Error)

	for i, votes := 0, []uint{candidates[1].ID, candidates[1].ID, candidates[0].ID}; i < len(votes); i++ {
		user, _ := createTestUser(t, env, "res"+string(rune('a'+i))+"@college.edu", "RES-00"+string(rune('1'+i)))
		_, err := env.Votes.Cast(user.ID, election.ID, votes[i])
		require.NoError(t, err)
	}

	w := doJSON(router, "GET", "/api/elections/"+itoa(election.ID)+"/results", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Results []models.CandidateResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 3)

	// descending by votes, zero-vote candidate still present
	assert.Equal(t, "Bob", resp.Results[0].CandidateName)
	assert.Equal(t, int64(2), resp.Results[0].VoteCount)
	assert.Equal(t, "Alice", resp.Results[1].CandidateName)
	assert.Equal(t, int64(1), resp.Results[1].VoteCount)
	assert.Equal(t, "Carol", resp.Results[2].CandidateName)
	assert.Equal(t, int64(0), resp.Results[2].VoteCount)
}

func TestResults_TieBreaksByCandidateID(t *testing.T) {
	router, env := SetupTestEnvironment(t)
	ClearTables(env.DB)

	election, candidates := createTestElection(t, env)
	third := models.Candidate{ElectionID: election.ID, Name: "Carol", SymbolNumber: 3}
	require.NoError(t, env.DB.Create(&third).Error)

	// Alice leads, Bob and Carol tie at one vote each
	for i, votes := 0, []uint{candidates[0].ID, candidates[0].ID, candidates[1].ID, third.ID}; i < len(votes); i++ {
		user, _ := createTestUser(t, env, "tie"+string(rune('a'+i))+"@college.edu", "TIE-00"+string(rune('1'+i)))
		_, err := env.Votes.Cast(user.ID, election.ID, votes[i])
		require.NoError(t, err)
	}

	w := doJSON(router, "GET", "/api/elections/"+itoa(election.ID)+"/results", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Results []models.CandidateResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 3)

	assert.Equal(t, "Alice", resp.Results[0].CandidateName)
	assert.Equal(t, int64(2), resp.Results[0].VoteCount)

	// tied candidates come out in ascending ID order, every run
	assert.Equal(t, int64(1), resp.Results[1].VoteCount)
	assert.Equal(t, int64(1), resp.Results[2].VoteCount)
	assert.Equal(t, candidates[1].ID, resp.Results[1].CandidateID)
	assert.Equal(t, third.ID, resp.Results[2].CandidateID)
	assert.Less(t, resp.Results[1].CandidateID, resp.Results[2].CandidateID)
}

func TestResults_UnknownElection(t *testing.T) {
	router, env := SetupTestEnvironment(t)
	ClearTables(env.DB)

	w := doJSON(router, "GET", "/api/elections/424242/results", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHasVotedEndpoint(t *testing.T) {
	router, env := SetupTestEnvironment(t)
	ClearTables(env.DB)

	_, token := createTestUser(t, env, "voter7@college.edu", "V-007")
	election, candidates := createTestElection(t, env)

	w := doJSON(router, "GET", "/api/votes/status/"+itoa(election.ID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"has_voted":false`)

	doJSON(router, "POST", "/api/votes", token, gin.H{
		"election_id":  election.ID,
		"candidate_id": candidates[0].ID,
	})

	w = doJSON(router, "GET", "/api/votes/status/"+itoa(election.ID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"has_voted":true`)
}

func TestCastVote_FaceGate(t *testing.T) {
	router, env := SetupTestEnvironment(t)
	ClearTables(env.DB)

	env.Cfg.RequireFaceMatch = true
	t.Cleanup(func() { env.Cfg.RequireFaceMatch = false })

	user, token := createTestUser(t, env, "voter8@college.edu", "V-008")
	election, candidates := createTestElection(t, env)

	reference := []byte("stable-face-signature-bytes")
	capture := base64.StdEncoding.EncodeToString(reference)

	// no capture at all
	w := doJSON(router, "POST", "/api/votes", token, gin.H{
		"election_id":  election.ID,
		"candidate_id": candidates[0].ID,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// capture but no registered face
	w = doJSON(router, "POST", "/api/votes", token, gin.H{
		"election_id":  election.ID,
		"candidate_id": candidates[0].ID,
		"face_capture": capture,
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	// register and retry with a matching capture
	_, err := env.Faces.Register(user.ID, reference, 0.99)
	require.NoError(t, err)

	w = doJSON(router, "POST", "/api/votes", token, gin.H{
		"election_id":  election.ID,
		"candidate_id": candidates[0].ID,
		"face_capture": capture,
	})
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}
