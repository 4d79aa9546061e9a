// Project Structure Overview
/*
crm-backend/
├── cmd/
│   └── server/
│       └── main.go
├── internal/
│   ├── config/
│   │   ├── config.go
│   │   └── database.go
│   ├── models/
│   │   ├── common.go
│   │   ├── user.go
│   │   ├── lead.go
│   │   ├── sale.go
│   │   ├── policy.go
│   │   ├── commission.go
│   │   ├── recovery.go
│   │   └── workflow.go
│   ├── handlers/
│   │   ├── auth.go
│   │   ├── lead.go
│   │   ├── sale.go
│   │   ├── policy.go
│   │   ├── commission.go
│   │   ├── recovery.go
│   │   ├── workflow.go
│   │   └── webhook.go
│   ├── services/
│   │   ├── auth_service.go
│   │   ├── lead_service.go
│   │   ├── sale_service.go
│   │   ├── policy_service.go
│   │   ├── commission_service.go
│   │   ├── recovery_service.go
│   │   ├── workflow_service.go
│   │   ├── payment_service.go
│   │   ├── document_service.go
│   │   └── notification_service.go
│   ├── middleware/
│   │   ├── auth.go
│   │   ├── cors.go
│   │   ├── rate_limit.go
│   │   ├── i18n.go
│   │   └── logging.go
│   ├── database/
│   │   └── connection.go
│   ├── i18n/
│   │   ├── i18n.go
│   │   ├── locales/
│   │   │   ├── pt_BR.json
│   │   │   └── en.json
│   │   └── keys.go
│   ├── utils/
│   │   ├── jwt.go
│   │   ├── validator.go
│   │   ├── crypto.go
│   │   ├── pagination.go
│   │   └── response.go
│   └── router/
│       └── router.go
├── go.mod
└── go.sum
*/

package crmbackend

// This file shows the project structure and main entry point
// The actual implementation will be in separate files as shown in the structure above
