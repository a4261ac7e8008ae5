package service

import (
	"context"
	"testing"
	"time"

	"github.com/facturalink/dte-backend/internal/app/model"
	"github.com/facturalink/dte-backend/internal/app/repository"
	"github.com/facturalink/dte-backend/internal/db"
	"github.com/facturalink/dte-backend/internal/queue"
	"github.com/facturalink/dte-backend/pkg/hacienda"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type transmissionFixture struct {
	service   TransmissionService
	documents DocumentService
	tenants   repository.TenantRepository
	queue     *queue.MemoryQueue
	tenantID  uint
}

func setupTransmission(t *testing.T) *transmissionFixture {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	docRepo := repository.NewDocumentRepository(testDB)
	jobRepo := repository.NewTransmissionRepository(testDB)
	tenantRepo := repository.NewTenantRepository(testDB)

	tenant := &model.Tenant{
		Name:   "Comercial El Progreso",
		NIT:    "0614-290986-102-3",
		Email:  "facturacion@elprogreso.sv",
		Active: true,
	}
	require.NoError(t, tenantRepo.Create(tenant))

	memQueue := queue.NewMemoryQueue(queue.RetentionPolicy{KeepFailed: true})
	policy := queue.RetryPolicy{MaxAttempts: 3, BackoffBase: time.Second, BackoffMultiplier: 2}

	return &transmissionFixture{
		service:   NewTransmissionService(docRepo, jobRepo, tenantRepo, memQueue, policy),
		documents: NewDocumentService(docRepo),
		tenants:   tenantRepo,
		queue:     memQueue,
		tenantID:  tenant.ID,
	}
}

func (f *transmissionFixture) signedDocument(t *testing.T) *model.Document {
	doc, err := f.documents.Issue(IssueDocumentInput{
		TenantID:      f.tenantID,
		Type:          model.TypeFactura,
		Establishment: "M001",
		PointOfSale:   "P001",
		Environment:   hacienda.EnvironmentTest,
		Payload:       "{}",
		Ready:         true,
	})
	require.NoError(t, err)
	_, err = f.documents.MarkSigned(f.tenantID, doc.ID, "")
	require.NoError(t, err)
	return doc
}

func TestEnqueue_CreatesJobAndDelivers(t *testing.T) {
	f := setupTransmission(t)
	doc := f.signedDocument(t)
	ctx := context.Background()

	jobID, err := f.service.Enqueue(ctx, f.tenantID, doc.ID, hacienda.EnvironmentTest, false, "")
	require.NoError(t, err)
	require.NotEmpty(t, jobID)
	assert.Equal(t, 1, f.queue.Pending())

	job, err := f.service.GetJob(f.tenantID, jobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusQueued, job.Status)
	assert.Equal(t, doc.ID, job.DocumentID)
	assert.Equal(t, 3, job.MaxAttempts)
	assert.False(t, job.IsComplianceTest)
	assert.Empty(t, job.ComplianceEvent)
}

func TestEnqueue_ComplianceTestDefaultsToEmission(t *testing.T) {
	f := setupTransmission(t)
	doc := f.signedDocument(t)

	jobID, err := f.service.Enqueue(context.Background(), f.tenantID, doc.ID, hacienda.EnvironmentTest, true, "")
	require.NoError(t, err)

	job, err := f.service.GetJob(f.tenantID, jobID)
	require.NoError(t, err)
	assert.True(t, job.IsComplianceTest)
	assert.Equal(t, model.EventEmission, job.ComplianceEvent)
}

func TestEnqueue_Validation(t *testing.T) {
	f := setupTransmission(t)
	ctx := context.Background()

	// Unknown document.
	_, err := f.service.Enqueue(ctx, f.tenantID, 999, hacienda.EnvironmentTest, false, "")
	assert.ErrorIs(t, err, ErrDocumentNotFound)

	// Invalid environment.
	doc := f.signedDocument(t)
	_, err = f.service.Enqueue(ctx, f.tenantID, doc.ID, "staging", false, "")
	assert.ErrorIs(t, err, ErrInvalidEnvironment)

	// Another tenant's document.
	_, err = f.service.Enqueue(ctx, f.tenantID+1, doc.ID, hacienda.EnvironmentTest, false, "")
	assert.ErrorIs(t, err, ErrDocumentNotOwned)

	// Unsigned document.
	pending, err := f.documents.Issue(IssueDocumentInput{
		TenantID:      f.tenantID,
		Type:          model.TypeFactura,
		Establishment: "M001",
		PointOfSale:   "P001",
		Environment:   hacienda.EnvironmentTest,
		Payload:       "{}",
		Ready:         true,
	})
	require.NoError(t, err)
	_, err = f.service.Enqueue(ctx, f.tenantID, pending.ID, hacienda.EnvironmentTest, false, "")
	assert.ErrorIs(t, err, ErrDocumentNotTransmittable)

	assert.Equal(t, 0, f.queue.Pending())
}

func TestEnqueue_ProductionGate(t *testing.T) {
	f := setupTransmission(t)
	doc := f.signedDocument(t)
	ctx := context.Background()

	_, err := f.service.Enqueue(ctx, f.tenantID, doc.ID, hacienda.EnvironmentProduction, false, "")
	assert.ErrorIs(t, err, ErrProductionNotAuthorized)
	assert.Equal(t, 0, f.queue.Pending())

	// Authorization flips the gate.
	tenant, err := f.tenants.FindByID(f.tenantID)
	require.NoError(t, err)
	tenant.ProductionAuthorized = true
	require.NoError(t, f.tenants.Save(tenant))

	_, err = f.service.Enqueue(ctx, f.tenantID, doc.ID, hacienda.EnvironmentProduction, false, "")
	require.NoError(t, err)
	assert.Equal(t, 1, f.queue.Pending())
}

func TestGetJob_TenantIsolation(t *testing.T) {
	f := setupTransmission(t)
	doc := f.signedDocument(t)

	jobID, err := f.service.Enqueue(context.Background(), f.tenantID, doc.ID, hacienda.EnvironmentTest, false, "")
	require.NoError(t, err)

	// Another tenant sees not-found, not forbidden: job IDs must not leak.
	_, err = f.service.GetJob(f.tenantID+1, jobID)
	assert.ErrorIs(t, err, ErrJobNotFound)

	_, err = f.service.ListAttempts(f.tenantID+1, jobID)
	assert.ErrorIs(t, err, ErrJobNotFound)

	attempts, err := f.service.ListAttempts(f.tenantID, jobID)
	require.NoError(t, err)
	assert.Empty(t, attempts)
}
