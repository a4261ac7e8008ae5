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

type recurrenceFixture struct {
	service   RecurrenceService
	templates repository.RecurrenceRepository
	documents repository.DocumentRepository
	queue     *queue.MemoryQueue
	tenantID  uint
}

func setupRecurrence(t *testing.T) *recurrenceFixture {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	docRepo := repository.NewDocumentRepository(testDB)
	jobRepo := repository.NewTransmissionRepository(testDB)
	tenantRepo := repository.NewTenantRepository(testDB)
	templateRepo := repository.NewRecurrenceRepository(testDB)

	tenant := &model.Tenant{
		Name:   "Comercial El Progreso",
		NIT:    "0614-290986-102-3",
		Email:  "facturacion@elprogreso.sv",
		Active: true,
	}
	require.NoError(t, tenantRepo.Create(tenant))

	memQueue := queue.NewMemoryQueue(queue.RetentionPolicy{})
	policy := queue.RetryPolicy{MaxAttempts: 3, BackoffBase: time.Second, BackoffMultiplier: 2}

	documentService := NewDocumentService(docRepo)
	transmissionService := NewTransmissionService(docRepo, jobRepo, tenantRepo, memQueue, policy)

	return &recurrenceFixture{
		service:   NewRecurrenceService(templateRepo, documentService, transmissionService),
		templates: templateRepo,
		documents: docRepo,
		queue:     memQueue,
		tenantID:  tenant.ID,
	}
}

func (f *recurrenceFixture) createTemplate(t *testing.T, interval model.RecurrenceInterval, nextRunAt time.Time) *model.RecurringTemplate {
	template := &model.RecurringTemplate{
		TenantID:      f.tenantID,
		DocumentType:  model.TypeFactura,
		Establishment: "M001",
		PointOfSale:   "P001",
		Environment:   hacienda.EnvironmentTest,
		Payload:       `{"identificacion":{"version":1}}`,
		Interval:      interval,
		NextRunAt:     nextRunAt,
	}
	require.NoError(t, f.service.CreateTemplate(template))
	return template
}

func TestCreateTemplate_DefaultsNextRun(t *testing.T) {
	f := setupRecurrence(t)

	template := f.createTemplate(t, model.IntervalDaily, time.Time{})
	assert.True(t, template.Active)
	assert.False(t, template.NextRunAt.IsZero())
	assert.True(t, template.NextRunAt.After(time.Now()))
}

func TestRunDue_IssuesSignsAndEnqueues(t *testing.T) {
	f := setupRecurrence(t)
	now := time.Now()

	f.createTemplate(t, model.IntervalDaily, now.Add(-time.Minute))
	notDue := f.createTemplate(t, model.IntervalDaily, now.Add(time.Hour))

	enqueued, err := f.service.RunDue(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, enqueued)
	assert.Equal(t, 1, f.queue.Pending())

	docs, total, err := f.documents.ListByTenant(f.tenantID, 10, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	// The document stays SIGNED until a worker picks the job up.
	assert.Equal(t, model.DocumentStateSigned, docs[0].State)

	untouched, err := f.templates.FindByID(notDue.ID)
	require.NoError(t, err)
	assert.Nil(t, untouched.LastEnqueuedAt)
}

func TestRunDue_AdvancesSchedulePastNow(t *testing.T) {
	f := setupRecurrence(t)
	now := time.Now()

	// A template that fell far behind must not fire repeatedly to catch up.
	stale := f.createTemplate(t, model.IntervalDaily, now.AddDate(0, 0, -10))

	enqueued, err := f.service.RunDue(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, enqueued)

	updated, err := f.templates.FindByID(stale.ID)
	require.NoError(t, err)
	assert.True(t, updated.NextRunAt.After(now))
	require.NotNil(t, updated.LastEnqueuedAt)

	// Nothing further is due on the same tick.
	enqueued, err = f.service.RunDue(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 0, enqueued)
}

func TestRunDue_DeactivatedTemplatesAreSkipped(t *testing.T) {
	f := setupRecurrence(t)
	now := time.Now()

	template := f.createTemplate(t, model.IntervalWeekly, now.Add(-time.Minute))
	require.NoError(t, f.service.DeactivateTemplate(f.tenantID, template.ID))

	enqueued, err := f.service.RunDue(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 0, enqueued)
	assert.Equal(t, 0, f.queue.Pending())
}

func TestDeactivateTemplate_TenantIsolation(t *testing.T) {
	f := setupRecurrence(t)

	template := f.createTemplate(t, model.IntervalMonthly, time.Now().Add(time.Hour))

	err := f.service.DeactivateTemplate(f.tenantID+1, template.ID)
	assert.ErrorIs(t, err, ErrTemplateNotFound)

	err = f.service.DeactivateTemplate(f.tenantID, 999)
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestIntervalNextAfter(t *testing.T) {
	base := time.Date(2026, 1, 31, 8, 0, 0, 0, time.UTC)

	assert.Equal(t, base.AddDate(0, 0, 1), model.IntervalDaily.NextAfter(base))
	assert.Equal(t, base.AddDate(0, 0, 7), model.IntervalWeekly.NextAfter(base))
	assert.Equal(t, base.AddDate(0, 1, 0), model.IntervalMonthly.NextAfter(base))
}
