// internal/database/connection.go
package database

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/corretorpro/crm-backend/internal/config"
	"github.com/corretorpro/crm-backend/internal/models"
)

var DB *gorm.DB

func Initialize(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var err error
	var gormConfig *gorm.Config

	// Configure GORM logger
	if cfg.LogLevel == "silent" {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		}
	} else {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Info),
		}
	}

	// Connect to database
	DB, err = gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB
	sqlDB, err := DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Second)

	// Test connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Database connection established successfully")
	return DB, nil
}

func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Printf("Error getting underlying sql.DB: %v", err)
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Printf("Error closing database connection: %v", err)
	} else {
		log.Println("Database connection closed successfully")
	}
}

func RunMigrations(db *gorm.DB) error {
	log.Println("Running database migrations...")

	// Enable UUID extension
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS \"uuid-ossp\"").Error; err != nil {
		return fmt.Errorf("failed to create UUID extension: %w", err)
	}

	// Run auto-migrations
	err := db.AutoMigrate(
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
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Create indexes
	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	log.Println("Database migrations completed successfully")
	return nil
}

func createIndexes(db *gorm.DB) error {
	indexes := []string{
		// Lead indexes
		"CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status)",
		"CREATE INDEX IF NOT EXISTS idx_leads_created_at ON leads(created_at DESC)",

		// Sale indexes
		"CREATE INDEX IF NOT EXISTS idx_sales_seller_status ON sales(seller_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_sales_client ON sales(client_id)",
		"CREATE INDEX IF NOT EXISTS idx_sales_status ON sales(status)",
		"CREATE INDEX IF NOT EXISTS idx_sales_created_at ON sales(created_at DESC)",

		// Payment indexes
		"CREATE INDEX IF NOT EXISTS idx_payments_sale ON payments(sale_id)",
		"CREATE INDEX IF NOT EXISTS idx_payments_intent ON payments(stripe_intent_id)",
		// A sale settles at most once.
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_sale_succeeded ON payments(sale_id) WHERE status = 'succeeded'",

		// Policy indexes
		"CREATE INDEX IF NOT EXISTS idx_policies_sale ON policies(sale_id)",
		"CREATE INDEX IF NOT EXISTS idx_policies_status ON policies(status)",

		// Commission indexes
		"CREATE INDEX IF NOT EXISTS idx_commissions_payee_status ON commissions(payee_id, status)",

		// Recovery indexes
		"CREATE INDEX IF NOT EXISTS idx_recovery_campaigns_next_attempt ON recovery_campaigns(status, next_attempt_at)",
		// One active campaign per lead; concurrent triggers collapse here.
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_recovery_campaigns_lead_active ON recovery_campaigns(lead_id) WHERE status = 'ativo'",

		// Workflow indexes
		"CREATE INDEX IF NOT EXISTS idx_workflow_executions_workflow_status ON workflow_executions(workflow_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_workflow_executions_started_at ON workflow_executions(started_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_follow_up_tasks_status ON follow_up_tasks(status, created_at)",
	}

	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			log.Printf("Warning: Failed to create index: %s, Error: %v", index, err)
			// Continue with other indexes instead of failing completely
		}
	}

	return nil
}

// Seed initial data
func SeedInitialData(db *gorm.DB) error {
	log.Println("Seeding initial data...")

	// Create default admin user
	var adminCount int64
	db.Model(&models.User{}).Where("user_type = ?", models.UserTypeAdmin).Count(&adminCount)

	if adminCount == 0 {
		admin := &models.User{
			Username: "admin",
			Email:    "admin@corretorpro.com.br",
			UserType: models.UserTypeAdmin,
			Status:   models.UserStatusActive,
		}

		if err := admin.SetPassword("admin123!@#"); err != nil {
			return fmt.Errorf("failed to set admin password: %w", err)
		}

		if err := db.Create(admin).Error; err != nil {
			return fmt.Errorf("failed to create admin user: %w", err)
		}

		log.Println("Default admin user created successfully")
	}

	// The automatic seller owns sales opened by lead qualification.
	var autoCount int64
	db.Model(&models.User{}).Where("user_type = ?", models.UserTypeAutomatico).Count(&autoCount)

	if autoCount == 0 {
		auto := &models.User{
			Username: "vendedor-automatico",
			Email:    "automatico@corretorpro.com.br",
			UserType: models.UserTypeAutomatico,
			Status:   models.UserStatusActive,
		}

		if err := auto.SetPassword("automatico123!@#"); err != nil {
			return fmt.Errorf("failed to set automatic seller password: %w", err)
		}

		if err := db.Create(auto).Error; err != nil {
			return fmt.Errorf("failed to create automatic seller: %w", err)
		}

		log.Println("Automatic seller created successfully")
	}

	// Insurer routing rules. Higher priority wins; MinValue is an
	// exclusive lower bound, so the zero-value rule is the category
	// fallback.
	var ruleCount int64
	db.Model(&models.InsurerRule{}).Count(&ruleCount)

	if ruleCount == 0 {
		insurerRules := []models.InsurerRule{
			{Category: "auto", MinValue: 2000, Insurer: "Porto Seguro", Priority: 10, IsActive: true},
			{Category: "auto", MinValue: 0, Insurer: "SulAmérica", Priority: 1, IsActive: true},
			{Category: "vida", MinValue: 1000, Insurer: "SulAmérica", Priority: 10, IsActive: true},
			{Category: "vida", MinValue: 0, Insurer: "Porto Seguro", Priority: 1, IsActive: true},
			{Category: "residencial", MinValue: 1500, Insurer: "Porto Seguro", Priority: 10, IsActive: true},
			{Category: "residencial", MinValue: 0, Insurer: "SulAmérica", Priority: 1, IsActive: true},
			{Category: "saude", MinValue: 0, Insurer: "SulAmérica", Priority: 1, IsActive: true},
		}

		if err := db.Create(&insurerRules).Error; err != nil {
			return fmt.Errorf("failed to seed insurer rules: %w", err)
		}

		log.Println("Insurer rules seeded successfully")
	}

	// Sample products so a fresh environment can run the whole funnel.
	var productCount int64
	db.Model(&models.InsuranceProduct{}).Count(&productCount)

	if productCount == 0 {
		products := []models.InsuranceProduct{
			{Name: "Seguro Auto Essencial", Category: "auto", BasePrice: 1800, IsActive: true},
			{Name: "Seguro Auto Completo", Category: "auto", BasePrice: 3200, IsActive: true},
			{Name: "Seguro de Vida Individual", Category: "vida", BasePrice: 850, IsActive: true},
			{Name: "Seguro Residencial Padrão", Category: "residencial", BasePrice: 1200, IsActive: true},
			{Name: "Plano Saúde Ambulatorial", Category: "saude", BasePrice: 650, IsActive: true},
		}

		if err := db.Create(&products).Error; err != nil {
			return fmt.Errorf("failed to seed products: %w", err)
		}

		log.Println("Insurance products seeded successfully")
	}

	log.Println("Initial data seeding completed")
	return nil
}

// WithTransaction executes fn inside a database transaction
func WithTransaction(db *gorm.DB, fn func(*gorm.DB) error) error {
	return db.Transaction(fn)
}
