package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/facturalink/dte-backend/config"
	"github.com/facturalink/dte-backend/internal/app/controller"
	"github.com/facturalink/dte-backend/internal/app/model"
	"github.com/facturalink/dte-backend/internal/app/repository"
	"github.com/facturalink/dte-backend/internal/app/service"
	"github.com/facturalink/dte-backend/internal/db"
	"github.com/facturalink/dte-backend/internal/middleware"
	"github.com/facturalink/dte-backend/internal/queue"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type TestServer struct {
	Router *gin.Engine
	DB     *gorm.DB
	Queue  *queue.MemoryQueue
}

func setupIntegrationTest(t *testing.T) *TestServer {
	gin.SetMode(gin.TestMode)

	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	tenantRepo := repository.NewTenantRepository(testDB)
	documentRepo := repository.NewDocumentRepository(testDB)
	transmissionRepo := repository.NewTransmissionRepository(testDB)
	complianceRepo := repository.NewComplianceRepository(testDB)
	onboardingRepo := repository.NewOnboardingRepository(testDB)

	jwtCfg := config.JWTConfig{
		Secret:             "integration-test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 7 * 24 * time.Hour,
	}

	memQueue := queue.NewMemoryQueue(queue.RetentionPolicy{KeepFailed: true})
	policy := queue.RetryPolicy{MaxAttempts: 3, BackoffBase: time.Second, BackoffMultiplier: 2}

	authService := service.NewAuthService(tenantRepo, jwtCfg)
	documentService := service.NewDocumentService(documentRepo)
	complianceService := service.NewComplianceService(complianceRepo, onboardingRepo)
	onboardingService := service.NewOnboardingService(onboardingRepo, tenantRepo, complianceService)
	transmissionService := service.NewTransmissionService(documentRepo, transmissionRepo, tenantRepo, memQueue, policy)

	authController := controller.NewAuthController(authService)
	documentController := controller.NewDocumentController(documentService)
	transmissionController := controller.NewTransmissionController(transmissionService)
	complianceController := controller.NewComplianceController(complianceService)
	onboardingController := controller.NewOnboardingController(onboardingService)

	authMiddleware := middleware.NewAuthMiddleware(jwtCfg.Secret)

	router := gin.New()
	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/register", authController.Register)
			auth.POST("/login", authController.Login)
		}

		documents := v1.Group("/documents", authMiddleware.Authenticate())
		{
			documents.POST("", documentController.Issue)
			documents.GET("/:id", documentController.GetDocument)
			documents.POST("/:id/sign", documentController.Sign)
		}

		transmissions := v1.Group("/transmissions", authMiddleware.Authenticate())
		{
			transmissions.POST("", transmissionController.Enqueue)
			transmissions.GET("/:id", transmissionController.GetJob)
		}

		compliance := v1.Group("/compliance", authMiddleware.Authenticate())
		{
			compliance.GET("/progress", complianceController.GetProgress)
		}

		onboarding := v1.Group("/onboarding", authMiddleware.Authenticate())
		{
			onboarding.POST("/start", onboardingController.Start)
			onboarding.GET("", onboardingController.GetState)
			onboarding.POST("/steps/complete", onboardingController.CompleteStep)
		}
	}

	return &TestServer{
		Router: router,
		DB:     testDB,
		Queue:  memQueue,
	}
}

func (ts *TestServer) request(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewBuffer(data)
	} else {
		reader = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	ts.Router.ServeHTTP(w, req)
	return w
}

func registerAndLogin(t *testing.T, ts *TestServer, nit string) string {
	w := ts.request(t, "POST", "/api/v1/auth/register", "", map[string]interface{}{
		"name":       "Comercial El Progreso",
		"nit":        nit,
		"nrc":        "123456-7",
		"email":      "facturacion@elprogreso.sv",
		"api_secret": "super-secret-api-key",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = ts.request(t, "POST", "/api/v1/auth/login", "", map[string]interface{}{
		"nit":        nit,
		"api_secret": "super-secret-api-key",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Tokens struct {
			AccessToken string `json:"access_token"`
		} `json:"tokens"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Tokens.AccessToken)
	return resp.Tokens.AccessToken
}

func TestIntegration_IssueSignAndEnqueue(t *testing.T) {
	ts := setupIntegrationTest(t)
	token := registerAndLogin(t, ts, "0614-290986-102-3")

	w := ts.request(t, "POST", "/api/v1/documents", token, map[string]interface{}{
		"type":          "01",
		"establishment": "M001",
		"point_of_sale": "P001",
		"environment":   "test",
		"payload":       `{"identificacion":{"version":1}}`,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var issued struct {
		Document model.Document `json:"document"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &issued))
	assert.Equal(t, model.DocumentStatePending, issued.Document.State)
	assert.Regexp(t, `^DTE-01-M001P001-\d{15}$`, issued.Document.ControlNumber)
	assert.Len(t, issued.Document.GenerationCode, 36)

	docID := strconv.FormatUint(uint64(issued.Document.ID), 10)

	// Enqueue before signing must fail.
	w = ts.request(t, "POST", "/api/v1/transmissions", token, map[string]interface{}{
		"document_id": issued.Document.ID,
		"environment": "test",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.request(t, "POST", "/api/v1/documents/"+docID+"/sign", token, map[string]interface{}{})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.request(t, "POST", "/api/v1/transmissions", token, map[string]interface{}{
		"document_id": issued.Document.ID,
		"environment": "test",
	})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var enq struct {
		JobID string `json:"job_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &enq))
	require.NotEmpty(t, enq.JobID)
	assert.Equal(t, 1, ts.Queue.Pending())

	w = ts.request(t, "GET", "/api/v1/transmissions/"+enq.JobID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), string(model.JobStatusQueued))
}

func TestIntegration_ProductionRequiresAuthorization(t *testing.T) {
	ts := setupIntegrationTest(t)
	token := registerAndLogin(t, ts, "0614-290986-102-3")

	w := ts.request(t, "POST", "/api/v1/documents", token, map[string]interface{}{
		"type":          "03",
		"establishment": "M001",
		"point_of_sale": "P001",
		"environment":   "production",
		"payload":       `{"identificacion":{"version":3}}`,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var issued struct {
		Document model.Document `json:"document"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &issued))
	docID := strconv.FormatUint(uint64(issued.Document.ID), 10)

	w = ts.request(t, "POST", "/api/v1/documents/"+docID+"/sign", token, map[string]interface{}{})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.request(t, "POST", "/api/v1/transmissions", token, map[string]interface{}{
		"document_id": issued.Document.ID,
		"environment": "production",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "AUTHZ_PRODUCTION_NOT_AUTHORIZED")
	assert.Equal(t, 0, ts.Queue.Pending())
}

func TestIntegration_OnboardingWalkthrough(t *testing.T) {
	ts := setupIntegrationTest(t)
	token := registerAndLogin(t, ts, "0614-290986-102-3")

	w := ts.request(t, "POST", "/api/v1/onboarding/start", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), string(model.StepCompanyInfo))

	// Completing a step that is not current is rejected.
	w = ts.request(t, "POST", "/api/v1/onboarding/steps/complete", token, map[string]interface{}{
		"step": string(model.StepExecuteTests),
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	// Completing the current step advances.
	w = ts.request(t, "POST", "/api/v1/onboarding/steps/complete", token, map[string]interface{}{
		"step": string(model.StepCompanyInfo),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), string(model.StepCredentials))

	w = ts.request(t, "GET", "/api/v1/onboarding", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), string(model.StepCredentials))
}
