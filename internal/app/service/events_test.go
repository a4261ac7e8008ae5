package service

import (
	"testing"

	"github.com/facturalink/dte-backend/internal/app/model"
	"github.com/facturalink/dte-backend/internal/app/repository"
	"github.com/facturalink/dte-backend/internal/db"
	"github.com/facturalink/dte-backend/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHub struct {
	tenants []uint
	events  []TransmissionEvent
}

func (h *recordingHub) BroadcastTransmission(tenantID uint, event interface{}) {
	h.tenants = append(h.tenants, tenantID)
	h.events = append(h.events, event.(TransmissionEvent))
}

func setupEvents(t *testing.T) (*TransmissionEvents, *recordingHub, ComplianceService) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	compliance := NewComplianceService(
		repository.NewComplianceRepository(testDB),
		repository.NewOnboardingRepository(testDB),
	)
	require.NoError(t, compliance.InitializeRequirements(1, []model.DocumentType{model.TypeFactura}))

	hub := &recordingHub{}
	return NewTransmissionEvents(compliance, hub, nil), hub, compliance
}

func acceptedDocument() *model.Document {
	return &model.Document{
		ID:             7,
		TenantID:       1,
		GenerationCode: "A1B2C3D4-0000-0000-0000-000000000001",
		Type:           model.TypeFactura,
		State:          model.DocumentStateAccepted,
		Stamp:          "2026SELLO001",
	}
}

func TestTransmissionSucceeded_BroadcastsToTenant(t *testing.T) {
	events, hub, _ := setupEvents(t)

	job := &queue.Job{ID: "job-1", TenantID: 1, DocumentID: 7}
	events.TransmissionSucceeded(job, acceptedDocument())

	require.Len(t, hub.events, 1)
	assert.Equal(t, uint(1), hub.tenants[0])
	assert.Equal(t, "job-1", hub.events[0].JobID)
	assert.Equal(t, model.DocumentStateAccepted, hub.events[0].State)
	assert.Equal(t, "2026SELLO001", hub.events[0].Stamp)
	assert.Empty(t, hub.events[0].Reason)
}

func TestTransmissionFailed_CarriesReason(t *testing.T) {
	events, hub, _ := setupEvents(t)

	doc := acceptedDocument()
	doc.State = model.DocumentStateRejected
	doc.Stamp = ""

	job := &queue.Job{ID: "job-2", TenantID: 1, DocumentID: 7}
	events.TransmissionFailed(job, doc, "NIT del emisor no coincide")

	require.Len(t, hub.events, 1)
	assert.Equal(t, model.DocumentStateRejected, hub.events[0].State)
	assert.Equal(t, "NIT del emisor no coincide", hub.events[0].Reason)
}

func TestTransmissionSucceeded_RecordsComplianceTestOnly(t *testing.T) {
	events, _, compliance := setupEvents(t)
	doc := acceptedDocument()

	// A production document does not touch the counters.
	events.TransmissionSucceeded(&queue.Job{ID: "job-1", TenantID: 1}, doc)

	snapshot, err := compliance.GetProgress(1)
	require.NoError(t, err)
	for _, pair := range snapshot.Pairs {
		assert.Equal(t, 0, pair.Completed)
	}

	// A compliance test with no explicit event counts as an emission.
	events.TransmissionSucceeded(&queue.Job{ID: "job-2", TenantID: 1, IsComplianceTest: true}, doc)

	snapshot, err = compliance.GetProgress(1)
	require.NoError(t, err)
	for _, pair := range snapshot.Pairs {
		if pair.EventType == model.EventEmission {
			assert.Equal(t, 1, pair.Completed)
		}
	}
}

func TestTransmissionFailed_GatedCancellationIsSwallowed(t *testing.T) {
	events, hub, compliance := setupEvents(t)
	doc := acceptedDocument()

	// A cancellation pass before any emission violates the ordering rule;
	// the event sink logs and moves on, and the broadcast still happens.
	events.TransmissionSucceeded(&queue.Job{
		ID:               "job-1",
		TenantID:         1,
		IsComplianceTest: true,
		ComplianceEvent:  string(model.EventCancellation),
	}, doc)

	require.Len(t, hub.events, 1)

	snapshot, err := compliance.GetProgress(1)
	require.NoError(t, err)
	for _, pair := range snapshot.Pairs {
		assert.Equal(t, 0, pair.Completed)
	}
}
