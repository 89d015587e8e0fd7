package handlers

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"college-voting-backend/auth"
	"college-voting-backend/cache"
	"college-voting-backend/config"
	"college-voting-backend/database"
	"college-voting-backend/mailer"
	"college-voting-backend/models"
	"college-voting-backend/service"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testEnv bundles everything the handler tests touch directly
type testEnv struct {
	DB     *gorm.DB
	Cfg    *config.Config
	Mail   *mailer.MockSender
	Tokens *auth.TokenManager

	Users     service.UserService
	Admins    service.AdminService
	Elections service.ElectionService
	Votes     service.VoteService
	OTPs      service.OTPService
	Faces     service.FaceService
}

// SetupTestEnvironment sets up the Gin router and in-memory SQLite
// database for testing. Redis runs in mock mode so no external services
// are needed.
func SetupTestEnvironment(t *testing.T) (*gin.Engine, *testEnv) {
	testing.Init()
	gin.SetMode(gin.TestMode)

	// _busy_timeout so concurrent cast tests do not fail on the shared
	// in-memory database lock
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared&_busy_timeout=5000"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		log.Fatalf("Failed to connect to in-memory database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	cfg := &config.Config{
		ServerPort:       "0",
		FrontendURL:      "http://localhost:3000",
		JWTSecret:        []byte("test-secret"),
		AccessTokenTTL:   30 * time.Minute,
		LoginTokenTTL:    24 * time.Hour,
		OTPExpiryMinutes: 10,
		RedisMock:        true,
		MailMock:         true,
	}

	_ = cache.InitRedis(cfg)
	cache.ResetMock()

	mail := &mailer.MockSender{}
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL)

	otps := service.NewOTPService(db, cfg.OTPExpiryMinutes)
	env := &testEnv{
		DB:        db,
		Cfg:       cfg,
		Mail:      mail,
		Tokens:    tokens,
		Users:     service.NewUserService(db, otps, mail, cfg.FrontendURL, cfg.LoginTokenTTL),
		Admins:    service.NewAdminService(db),
		Elections: service.NewElectionService(db, nil),
		Votes:     service.NewVoteService(db),
		OTPs:      otps,
		Faces:     service.NewFaceService(db),
	}

	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	})

	// Routes mirror routes.SetupRouter without the background tickers
	router := gin.New()
	locks := cache.GetLockService()

	authCtl := NewAuthController(env.Users, tokens)
	otpCtl := NewOTPController(env.OTPs, mail, nil, locks)
	electionCtl := NewElectionController(env.Elections)
	voteCtl := NewVoteController(env.Votes, env.Faces, cfg, nil, nil)
	candidateCtl := NewCandidatePortalController(env.Elections, tokens)
	adminCtl := NewAdminController(env.Admins, tokens, nil)
	faceCtl := NewFaceController(env.Faces)
	healthCtl := NewHealthController(db)

	api := router.Group("/api")
	{
		healthCtl.RegisterRoutes(api)

		authCtl.RegisterRoutes(api)
		electionCtl.RegisterPublicRoutes(api)
		voteCtl.RegisterPublicRoutes(api)
		candidateCtl.RegisterPublicRoutes(api)
		adminCtl.RegisterPublicRoutes(api)

		user := api.Group("")
		user.Use(auth.Middleware(db, tokens))
		{
			user.GET("/auth/me", authCtl.Me)
			otpCtl.RegisterRoutes(user)
			voteCtl.RegisterRoutes(user)
			faceCtl.RegisterRoutes(user)
		}

		officer := api.Group("/manage")
		officer.Use(auth.Middleware(db, tokens), auth.RequireRoles(auth.ManagementRoles...))
		{
			electionCtl.RegisterAdminRoutes(officer)
		}

		candidate := api.Group("")
		candidate.Use(auth.CandidateMiddleware(db, tokens))
		{
			candidateCtl.RegisterProtectedRoutes(candidate)
		}

		admin := api.Group("")
		admin.Use(auth.AdminMiddleware(db, tokens))
		{
			adminCtl.RegisterProtectedRoutes(admin)
			electionCtl.RegisterAdminRoutes(admin)
		}
	}

	return router, env
}

// ClearTables wipes all rows between tests. Order matters because of
// the foreign keys.
func ClearTables(db *gorm.DB) {
	session := db.Session(&gorm.Session{AllowGlobalUpdate: true})
	session.Unscoped().Delete(&models.Vote{})
	session.Unscoped().Delete(&models.OTP{})
	session.Unscoped().Delete(&models.LoginToken{})
	session.Unscoped().Delete(&models.FaceEncoding{})
	session.Unscoped().Delete(&models.Candidate{})
	session.Unscoped().Delete(&models.Election{})
	session.Unscoped().Delete(&models.User{})
	session.Unscoped().Delete(&models.Admin{})
}

// createTestUser inserts an active user and returns it with a bearer token
func createTestUser(t *testing.T, env *testEnv, email, roll string) (*models.User, string) {
	t.Helper()

	hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	user := models.User{
		RollNumber:     roll,
		Email:          email,
		FullName:       "Test User",
		HashedPassword: string(hash),
		Role:           models.RoleStudent,
		IsActive:       true,
	}
	if err := env.DB.Create(&user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}

	token, err := env.Tokens.Issue(user.Email, auth.TokenKindUser)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	return &user, token
}

// createTestAdmin inserts an admin and returns a bearer token
func createTestAdmin(t *testing.T, env *testEnv) (*models.Admin, string) {
	t.Helper()

	hash, _ := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.MinCost)
	admin := models.Admin{
		Email:          "admin@test.local",
		FullName:       "Test Admin",
		HashedPassword: string(hash),
	}
	if err := env.DB.Create(&admin).Error; err != nil {
		t.Fatalf("failed to create test admin: %v", err)
	}

	token, err := env.Tokens.IssueForID(admin.ID, auth.TokenKindAdmin)
	if err != nil {
		t.Fatalf("failed to issue admin token: %v", err)
	}
	return &admin, token
}

// createTestElection inserts an ongoing election with two candidates
func createTestElection(t *testing.T, env *testEnv) (*models.Election, []models.Candidate) {
	t.Helper()

	election := models.Election{
		Title:       "Student Council 2026",
		Description: "Annual student council election",
		Status:      models.ElectionOngoing,
		StartTime:   time.Now().Add(-1 * time.Hour),
		EndTime:     time.Now().Add(24 * time.Hour),
		IsActive:    true,
	}
	if err := env.DB.Create(&election).Error; err != nil {
		t.Fatalf("failed to create test election: %v", err)
	}

	candidates := []models.Candidate{
		{ElectionID: election.ID, Name: "Alice", SymbolNumber: 1},
		{ElectionID: election.ID, Name: "Bob", SymbolNumber: 2},
	}
	if err := env.DB.Create(&candidates).Error; err != nil {
		t.Fatalf("failed to create test candidates: %v", err)
	}
	return &election, candidates
}

// itoa formats a record id for URL building
func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// doJSON performs a JSON request against the test router
func doJSON(router *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}

	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}
