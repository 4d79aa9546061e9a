package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/corretorpro/crm-backend/internal/models"
)

func TestSaleTransition_SetsClosedAtOnTerminal(t *testing.T) {
	db := newTestDB(t)
	svc := NewSaleService(db)
	sale := seedSale(t, db, models.SaleStatusPendente, 1500)

	updated, err := svc.Transition(context.Background(), sale.ID, &TransitionRequest{Status: models.SaleStatusQualificado})
	require.NoError(t, err)
	assert.Equal(t, models.SaleStatusQualificado, updated.Status)
	assert.Nil(t, updated.ClosedAt, "non-terminal transition must not close the sale")

	updated, err = svc.Transition(context.Background(), sale.ID, &TransitionRequest{Status: models.SaleStatusPago})
	require.NoError(t, err)
	assert.Equal(t, models.SaleStatusPago, updated.Status)
	require.NotNil(t, updated.ClosedAt, "terminal transition must close the sale")
}

func TestSaleTransition_LossReasonOnPerdido(t *testing.T) {
	db := newTestDB(t)
	svc := NewSaleService(db)
	sale := seedSale(t, db, models.SaleStatusProposta, 1500)

	updated, err := svc.Transition(context.Background(), sale.ID, &TransitionRequest{
		Status:     models.SaleStatusPerdido,
		LossReason: "cliente desistiu",
	})
	require.NoError(t, err)
	assert.Equal(t, models.SaleStatusPerdido, updated.Status)
	assert.Equal(t, "cliente desistiu", updated.LossReason)
	assert.NotNil(t, updated.ClosedAt)
}

func TestSaleTransition_TerminalStateRejectsFurtherMoves(t *testing.T) {
	db := newTestDB(t)
	svc := NewSaleService(db)
	sale := seedSale(t, db, models.SaleStatusPago, 1500)

	_, err := svc.Transition(context.Background(), sale.ID, &TransitionRequest{Status: models.SaleStatusPerdido})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	// The stored row must be untouched.
	var reloaded models.Sale
	require.NoError(t, db.First(&reloaded, "id = ?", sale.ID).Error)
	assert.Equal(t, models.SaleStatusPago, reloaded.Status)
}

func TestSaleTransition_InvalidEdgeRejected(t *testing.T) {
	db := newTestDB(t)
	svc := NewSaleService(db)
	sale := seedSale(t, db, models.SaleStatusProposta, 1500)

	// proposta cannot go back to qualificado
	_, err := svc.Transition(context.Background(), sale.ID, &TransitionRequest{Status: models.SaleStatusQualificado})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
}

func TestSaleTransition_UnknownSale(t *testing.T) {
	db := newTestDB(t)
	svc := NewSaleService(db)
	sale := seedSale(t, db, models.SaleStatusPendente, 1500)

	_, err := svc.GetSale(context.Background(), sale.ID)
	require.NoError(t, err)

	_, err = svc.Transition(context.Background(), newUUID(t), &TransitionRequest{Status: models.SaleStatusPago})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSaleTransition_PagoDispatchesWorkflows(t *testing.T) {
	db := newTestDB(t)
	svc := NewSaleService(db)
	dispatcher := &fakeDispatcher{}
	svc.SetDispatcher(dispatcher)
	sale := seedSale(t, db, models.SaleStatusProposta, 1500)

	_, err := svc.Transition(context.Background(), sale.ID, &TransitionRequest{Status: models.SaleStatusPago})
	require.NoError(t, err)

	calls := dispatcher.dispatched()
	require.Len(t, calls, 2)
	workflowIDs := []string{calls[0].WorkflowID, calls[1].WorkflowID}
	assert.Contains(t, workflowIDs, WorkflowPolicyEmission)
	assert.Contains(t, workflowIDs, WorkflowCommissionCalculation)
	assert.Equal(t, sale.ID.String(), calls[0].Payload["sale_id"])
}

func TestSaleTransition_NonPagoDoesNotDispatch(t *testing.T) {
	db := newTestDB(t)
	svc := NewSaleService(db)
	dispatcher := &fakeDispatcher{}
	svc.SetDispatcher(dispatcher)
	sale := seedSale(t, db, models.SaleStatusPendente, 1500)

	_, err := svc.Transition(context.Background(), sale.ID, &TransitionRequest{Status: models.SaleStatusQualificado})
	require.NoError(t, err)
	assert.Empty(t, dispatcher.dispatched())
}

// A writer that loses the read-check-write race gets ErrConflict and must
// not fire side effects. The race is simulated by flipping the row between
// the service's read and its conditional write.
func TestSaleTransition_LostUpdateGetsConflict(t *testing.T) {
	db := newTestDB(t)
	svc := NewSaleService(db)
	dispatcher := &fakeDispatcher{}
	svc.SetDispatcher(dispatcher)
	sale := seedSale(t, db, models.SaleStatusProposta, 1500)

	flipped := false
	err := db.Callback().Update().Before("gorm:update").Register("test_flip_status", func(tx *gorm.DB) {
		if flipped {
			return
		}
		flipped = true
		tx.Session(&gorm.Session{NewDB: true}).
			Exec("UPDATE sales SET status = ? WHERE id = ?", models.SaleStatusPago, sale.ID)
	})
	require.NoError(t, err)
	defer db.Callback().Update().Remove("test_flip_status")

	_, err = svc.Transition(context.Background(), sale.ID, &TransitionRequest{Status: models.SaleStatusPago})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConflict))

	// The loser must not schedule policy emission or commissions.
	assert.Empty(t, dispatcher.dispatched())

	var reloaded models.Sale
	require.NoError(t, db.First(&reloaded, "id = ?", sale.ID).Error)
	assert.Equal(t, models.SaleStatusPago, reloaded.Status)
}
