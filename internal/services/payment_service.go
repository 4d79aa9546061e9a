// internal/services/payment_service.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
	"gorm.io/gorm"

	"github.com/corretorpro/crm-backend/internal/config"
	"github.com/corretorpro/crm-backend/internal/models"
)

type PaymentService struct {
	db       *gorm.DB
	config   *config.Config
	sales    *SaleService
	recovery *RecoveryService
}

type CheckoutResponse struct {
	PaymentID    uuid.UUID `json:"payment_id"`
	ClientSecret string    `json:"client_secret"`
	IntentID     string    `json:"intent_id"`
	Amount       float64   `json:"amount"`
	Currency     string    `json:"currency"`
}

func NewPaymentService(db *gorm.DB, cfg *config.Config, sales *SaleService, recovery *RecoveryService) *PaymentService {
	// Initialize Stripe
	stripe.Key = cfg.Payment.StripeSecretKey

	return &PaymentService{
		db:       db,
		config:   cfg,
		sales:    sales,
		recovery: recovery,
	}
}

// CreateCheckout opens a Stripe PaymentIntent for the sale and records a
// pending payment. A sale that can still move forward is advanced to
// proposta, so the funnel reflects that a payment link went out.
func (s *PaymentService) CreateCheckout(ctx context.Context, saleID uuid.UUID) (*CheckoutResponse, error) {
	var sale models.Sale
	if err := s.db.WithContext(ctx).Preload("Client").First(&sale, "id = ?", saleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: sale %s", ErrNotFound, saleID)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if sale.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: sale %s is %s, checkout requires an open sale", ErrValidation, saleID, sale.Status)
	}

	currency := s.config.Payment.Currency
	amountInCents := int64(sale.Value * 100)

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountInCents),
		Currency: stripe.String(currency),
	}
	params.AddMetadata("sale_id", sale.ID.String())
	params.AddMetadata("client_id", sale.ClientID.String())

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create payment intent: %v", ErrIntegration, err)
	}

	payment := &models.Payment{
		SaleID:         sale.ID,
		StripeIntentID: pi.ID,
		Amount:         sale.Value,
		Currency:       currency,
		Status:         models.PaymentStatusPending,
	}
	if err := s.db.WithContext(ctx).Create(payment).Error; err != nil {
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}

	if sale.Status.CanTransitionTo(models.SaleStatusProposta) {
		if _, err := s.sales.Transition(ctx, sale.ID, &TransitionRequest{Status: models.SaleStatusProposta}); err != nil {
			// Checkout succeeded; a lost funnel update is recoverable.
			logrus.WithError(err).WithField("sale_id", sale.ID).
				Warn("Failed to advance sale to proposta after checkout")
		}
	}

	logrus.WithFields(logrus.Fields{
		"sale_id":    sale.ID,
		"payment_id": payment.ID,
		"intent_id":  pi.ID,
		"amount":     sale.Value,
	}).Info("Checkout created")

	return &CheckoutResponse{
		PaymentID:    payment.ID,
		ClientSecret: pi.ClientSecret,
		IntentID:     pi.ID,
		Amount:       sale.Value,
		Currency:     currency,
	}, nil
}

// HandleStripeEvent applies a verified webhook event. Every branch is
// written to tolerate Stripe's at-least-once delivery: a replayed event
// finds no pending payment row to move and becomes a no-op.
func (s *PaymentService) HandleStripeEvent(ctx context.Context, event stripe.Event) error {
	switch event.Type {
	case "payment_intent.succeeded":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return fmt.Errorf("%w: malformed payment_intent payload: %v", ErrValidation, err)
		}
		return s.handlePaymentSucceeded(ctx, pi.ID)

	case "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return fmt.Errorf("%w: malformed payment_intent payload: %v", ErrValidation, err)
		}
		return s.handlePaymentFailed(ctx, pi.ID)

	case "checkout.session.expired":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return fmt.Errorf("%w: malformed checkout session payload: %v", ErrValidation, err)
		}
		intentID := ""
		if session.PaymentIntent != nil {
			intentID = session.PaymentIntent.ID
		}
		return s.handleCheckoutExpired(ctx, session.ID, intentID)

	default:
		logrus.WithField("type", event.Type).Debug("Ignoring unhandled Stripe event")
		return nil
	}
}

func (s *PaymentService) handlePaymentSucceeded(ctx context.Context, intentID string) error {
	payment, err := s.paymentByIntent(ctx, intentID)
	if err != nil {
		return err
	}

	now := time.Now()
	result := s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status = ?", payment.ID, models.PaymentStatusPending).
		Updates(map[string]interface{}{
			"status":  models.PaymentStatusSucceeded,
			"paid_at": &now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update payment: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		logrus.WithField("payment_id", payment.ID).Info("Payment already settled, ignoring replay")
		return nil
	}

	if _, err := s.sales.Transition(ctx, payment.SaleID, &TransitionRequest{Status: models.SaleStatusPago}); err != nil {
		if errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrConflict) {
			// Sale already paid or closed through another path.
			logrus.WithError(err).WithField("sale_id", payment.SaleID).
				Info("Sale not transitioned on payment success")
			return nil
		}
		return err
	}

	logrus.WithFields(logrus.Fields{
		"payment_id": payment.ID,
		"sale_id":    payment.SaleID,
	}).Info("Payment succeeded, sale marked as paid")

	return nil
}

func (s *PaymentService) handlePaymentFailed(ctx context.Context, intentID string) error {
	payment, err := s.paymentByIntent(ctx, intentID)
	if err != nil {
		return err
	}

	result := s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status = ?", payment.ID, models.PaymentStatusPending).
		Update("status", models.PaymentStatusFailed)
	if result.Error != nil {
		return fmt.Errorf("failed to update payment: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil
	}

	s.triggerRecoveryForSale(ctx, payment.SaleID, models.RecoveryReasonPagamentoFalhou)

	logrus.WithFields(logrus.Fields{
		"payment_id": payment.ID,
		"sale_id":    payment.SaleID,
	}).Info("Payment failed, recovery triggered")

	return nil
}

func (s *PaymentService) handleCheckoutExpired(ctx context.Context, sessionID, intentID string) error {
	var payment models.Payment
	query := s.db.WithContext(ctx)
	if sessionID != "" {
		query = query.Where("stripe_session_id = ?", sessionID)
		if intentID != "" {
			query = query.Or("stripe_intent_id = ?", intentID)
		}
	} else {
		query = query.Where("stripe_intent_id = ?", intentID)
	}
	if err := query.First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logrus.WithField("session_id", sessionID).Warn("Expired checkout session has no payment record")
			return nil
		}
		return fmt.Errorf("database error: %w", err)
	}

	result := s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status = ?", payment.ID, models.PaymentStatusPending).
		Update("status", models.PaymentStatusCanceled)
	if result.Error != nil {
		return fmt.Errorf("failed to update payment: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil
	}

	s.triggerRecoveryForSale(ctx, payment.SaleID, models.RecoveryReasonCheckoutExpirado)

	logrus.WithFields(logrus.Fields{
		"payment_id": payment.ID,
		"sale_id":    payment.SaleID,
	}).Info("Checkout expired, recovery triggered")

	return nil
}

func (s *PaymentService) paymentByIntent(ctx context.Context, intentID string) (*models.Payment, error) {
	var payment models.Payment
	if err := s.db.WithContext(ctx).
		Where("stripe_intent_id = ?", intentID).
		First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: payment for intent %s", ErrNotFound, intentID)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &payment, nil
}

// triggerRecoveryForSale is best-effort: a sale without a lead, or a
// recovery failure, must not reject the webhook.
func (s *PaymentService) triggerRecoveryForSale(ctx context.Context, saleID uuid.UUID, reason models.RecoveryReason) {
	var sale models.Sale
	if err := s.db.WithContext(ctx).First(&sale, "id = ?", saleID).Error; err != nil {
		logrus.WithError(err).WithField("sale_id", saleID).Warn("Could not load sale for recovery trigger")
		return
	}
	if sale.LeadID == nil {
		return
	}

	if _, err := s.recovery.TriggerRecovery(ctx, *sale.LeadID, reason); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"sale_id": saleID,
			"lead_id": *sale.LeadID,
		}).Warn("Failed to trigger recovery campaign")
	}
}
