package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/therapy-api/internal/auth"
	"github.com/noah-isme/therapy-api/internal/config"
	"github.com/noah-isme/therapy-api/internal/database"
	"github.com/noah-isme/therapy-api/internal/handler"
	"github.com/noah-isme/therapy-api/internal/middleware"
	"github.com/noah-isme/therapy-api/internal/repository"
	"github.com/noah-isme/therapy-api/internal/router"
	"github.com/noah-isme/therapy-api/internal/service"
	"github.com/noah-isme/therapy-api/internal/validation"
	"github.com/noah-isme/therapy-api/pkg/ai"
)

type serverOptions struct {
	analyzer ai.Analyzer
	probes   []handler.HealthProbe
}

type testServer struct {
	app   *fiber.App
	db    *gorm.DB
	redis *miniredis.Miniredis
}

type envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Meta    json.RawMessage   `json:"meta"`
	Details map[string]string `json:"details"`
}

type account struct {
	ID    uuid.UUID
	Token string
}

func testConfig() config.Config {
	return config.Config{
		AppName:       "therapy-api-test",
		AppEnv:        "test",
		JWTSecret:     "handler-test-secret",
		JWTIssuer:     "therapy-api",
		JWTTTL:        time.Hour,
		BcryptCost:    bcrypt.MinCost,
		AIMediaMaxMB:  1,
		StatsCacheTTL: time.Minute,
		RelayChannel:  "therapy:relay",
	}
}

func newTestServer(t *testing.T, opts serverOptions) *testServer {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), database.Config())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	cfg := testConfig()
	logger := zerolog.New(io.Discard)
	validator := validation.New()

	mini := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })
	statsCache := service.NewStatsCache(redisClient, cfg.StatsCacheTTL, "handler-test", logger)

	analyzer := opts.analyzer
	if analyzer == nil {
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"prediction":"steady","confidence":0.7}`))
		}))
		t.Cleanup(upstream.Close)
		analyzer = newAIClient(t, upstream.URL)
	}

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	iepRepo := repository.NewIEPRepository(db)
	progressRepo := repository.NewProgressRepository(db)
	analysisRepo := repository.NewAnalysisRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	activityService := service.NewActivityService(activityRepo, logger)
	authService := service.NewAuthService(userRepo, auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL), auth.NewPasswordHasher(cfg.BcryptCost), validator, logger)
	studentService := service.NewStudentService(studentRepo, userRepo, service.StudentStatsSources{
		Progress: progressRepo,
		Plans:    iepRepo,
		Sessions: sessionRepo,
	}, validator, activityService, service.StudentServiceConfig{Stats: statsCache}, logger)
	sessionService := service.NewSessionService(sessionRepo, studentRepo, validator, activityService, statsCache, logger)
	iepService := service.NewIEPService(iepRepo, studentRepo, validator, activityService, statsCache, logger)
	progressService := service.NewProgressService(progressRepo, studentRepo, validator, activityService, statsCache, logger)
	analysisService := service.NewAnalysisService(analysisRepo, service.AnalysisSources{
		Students: studentRepo,
		Sessions: sessionRepo,
		Progress: progressRepo,
		Plans:    iepRepo,
	}, analyzer, validator, activityService, service.AnalysisServiceConfig{
		MediaMaxBytes: int64(cfg.AIMediaMaxMB) << 20,
	}, logger)
	relayService := service.NewRelayService(studentRepo, service.RelayFanout{}, logger)

	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		AuthHandler:     handler.NewAuthHandler(authService, logger),
		StudentHandler:  handler.NewStudentHandler(studentService, progressService, logger),
		SessionHandler:  handler.NewSessionHandler(sessionService, logger),
		IEPHandler:      handler.NewIEPHandler(iepService, logger),
		AnalysisHandler: handler.NewAnalysisHandler(analysisService, logger),
		RelayHandler:    handler.NewRelayHandler(relayService, logger),
		ActivityHandler: handler.NewActivityHandler(activityService, logger),
		HealthProbes:    opts.probes,
		Resolver:        authService,
	})

	return &testServer{app: app, db: db, redis: mini}
}

func newAIClient(t *testing.T, baseURL string) *ai.Client {
	t.Helper()

	client, err := ai.NewClient(ai.Config{BaseURL: baseURL, Timeout: 2 * time.Second, Logger: zerolog.Nop()})
	require.NoError(t, err)
	return client
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()

	status, raw := s.raw(t, method, path, token, body)

	var decoded envelope
	require.NoError(t, json.Unmarshal(raw, &decoded), string(raw))
	return status, decoded
}

func (s *testServer) raw(t *testing.T, method, path, token string, body interface{}) (int, []byte) {
	t.Helper()

	var reader io.Reader
	switch payload := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(payload)
	default:
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func (s *testServer) signup(t *testing.T, role string) account {
	t.Helper()

	status, body := s.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"email":    fmt.Sprintf("%s-%s@example.com", role, uuid.NewString()[:8]),
		"password": "secret1",
		"fullName": "Handler " + role,
		"role":     role,
	})
	require.Equal(t, http.StatusCreated, status, body.Message)

	var payload struct {
		Token string `json:"token"`
		User  struct {
			ID uuid.UUID `json:"id"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &payload))
	return account{ID: payload.User.ID, Token: payload.Token}
}

func (s *testServer) createStudent(t *testing.T, therapist, parent account) uuid.UUID {
	t.Helper()

	status, body := s.do(t, http.MethodPost, "/api/students", therapist.Token, map[string]string{
		"fullName":    "Budi",
		"dateOfBirth": "2016-04-12",
		"parentId":    parent.ID.String(),
	})
	require.Equal(t, http.StatusCreated, status, body.Message)

	var created struct {
		ID uuid.UUID `json:"id"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &created))
	return created.ID
}

func probe(name string, err error) handler.HealthProbe {
	return handler.HealthProbe{Name: name, Check: func(context.Context) error { return err }}
}
