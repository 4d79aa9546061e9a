package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/corretorpro/crm-backend/internal/config"
	"github.com/corretorpro/crm-backend/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:crmsvc_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")

	err = db.AutoMigrate(
		&models.User{},
		&models.Lead{},
		&models.Client{},
		&models.InsuranceProduct{},
		&models.Sale{},
		&models.Payment{},
		&models.Policy{},
		&models.PolicyDocument{},
		&models.InsurerRule{},
		&models.Commission{},
		&models.CommissionRule{},
		&models.RecoveryCampaign{},
		&models.WorkflowExecution{},
		&models.FollowUpTask{},
	)
	if err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newTestConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		Policy: config.PolicyConfig{
			DefaultInsurer:   "SulAmérica",
			CoverageDays:     365,
			LocalStoragePath: "./uploads",
		},
		Recovery: config.RecoveryConfig{MaxAttempts: 3},
	}
}

type sentMessage struct {
	To   string
	Text string
}

type fakeMessenger struct {
	mu      sync.Mutex
	sent    []sentMessage
	failErr error
}

func (m *fakeMessenger) Send(_ context.Context, to, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	m.sent = append(m.sent, sentMessage{To: to, Text: text})
	return nil
}

func (m *fakeMessenger) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type fakeDocuments struct {
	url     string
	failErr error
}

func (d *fakeDocuments) Generate(_ context.Context, policy *models.Policy, _ *models.Sale) (string, error) {
	if d.failErr != nil {
		return "", d.failErr
	}
	if d.url != "" {
		return d.url, nil
	}
	return "https://docs.test/" + policy.PolicyNumber + ".html", nil
}

type dispatchedWorkflow struct {
	WorkflowID  string
	TriggerType models.TriggerType
	Payload     models.JSONB
}

type fakeDispatcher struct {
	mu    sync.Mutex
	calls []dispatchedWorkflow
}

func (d *fakeDispatcher) DispatchAsync(workflowID string, triggerType models.TriggerType, payload models.JSONB) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, dispatchedWorkflow{WorkflowID: workflowID, TriggerType: triggerType, Payload: payload})
}

func (d *fakeDispatcher) dispatched() []dispatchedWorkflow {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]dispatchedWorkflow, len(d.calls))
	copy(out, d.calls)
	return out
}

func newUUID(t *testing.T) uuid.UUID {
	t.Helper()
	return uuid.New()
}

// seedSale creates the client, product, seller and one sale in the given
// status.
func seedSale(t *testing.T, db *gorm.DB, status models.SaleStatus, value float64) *models.Sale {
	t.Helper()

	client := &models.Client{Name: "Maria Souza", Phone: "+5511999990000", Email: "maria@test.com"}
	if err := db.Create(client).Error; err != nil {
		t.Fatalf("seed client: %v", err)
	}

	product := &models.InsuranceProduct{Name: "Seguro Auto Essencial", Category: "auto", BasePrice: value, IsActive: true}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}

	seller := &models.User{
		Username: "corretor-" + uuid.NewString()[:8],
		Email:    uuid.NewString()[:8] + "@test.com",
		UserType: models.UserTypeCorretor,
		Status:   models.UserStatusActive,
	}
	if err := seller.SetPassword("Secret123!"); err != nil {
		t.Fatalf("seed seller password: %v", err)
	}
	if err := db.Create(seller).Error; err != nil {
		t.Fatalf("seed seller: %v", err)
	}

	sale := &models.Sale{
		ClientID:     client.ID,
		ProductID:    product.ID,
		SellerID:     seller.ID,
		Value:        value,
		Installments: 1,
		Status:       status,
	}
	if status.IsTerminal() {
		now := time.Now()
		sale.ClosedAt = &now
	}
	if err := db.Create(sale).Error; err != nil {
		t.Fatalf("seed sale: %v", err)
	}
	return sale
}

func seedLead(t *testing.T, db *gorm.DB, message string) *models.Lead {
	t.Helper()

	lead := &models.Lead{
		Name:        "João Pereira",
		Phone:       "+5511988887777",
		Source:      "whatsapp",
		Status:      models.LeadStatusNovo,
		LastMessage: message,
	}
	if err := db.Create(lead).Error; err != nil {
		t.Fatalf("seed lead: %v", err)
	}
	return lead
}
