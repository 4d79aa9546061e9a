// internal/services/document_service.go
package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/sirupsen/logrus"

	"github.com/corretorpro/crm-backend/internal/config"
	"github.com/corretorpro/crm-backend/internal/models"
)

// DocumentService renders policy documents and stores them in S3, with a
// local-disk fallback when AWS credentials are absent. It implements
// DocumentGenerator.
type DocumentService struct {
	s3Client *s3.S3
	config   *config.Config
	tmpl     *template.Template
}

const policyDocumentTemplate = `<!DOCTYPE html>
<html lang="pt-BR">
<head>
	<meta charset="UTF-8">
	<title>Apólice {{.PolicyNumber}}</title>
</head>
<body>
	<h1>Apólice de Seguro</h1>
	<p><strong>Número:</strong> {{.PolicyNumber}}</p>
	<p><strong>Seguradora:</strong> {{.Insurer}}</p>
	<h2>Segurado</h2>
	<p>{{.ClientName}}</p>
	<p>{{.ClientPhone}}</p>
	<h2>Produto</h2>
	<p>{{.ProductName}} ({{.ProductCategory}})</p>
	<p><strong>Valor segurado:</strong> R$ {{printf "%.2f" .Value}}</p>
	<p><strong>Parcelas:</strong> {{.Installments}}</p>
	<h2>Vigência</h2>
	<p>De {{.CoverageStart}} a {{.CoverageEnd}}</p>
</body>
</html>`

func NewDocumentService(cfg *config.Config) (*DocumentService, error) {
	tmpl, err := template.New("policy").Parse(policyDocumentTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse policy template: %w", err)
	}

	if cfg.AWS.AccessKeyID == "" {
		// Local development falls back to disk storage.
		return &DocumentService{config: cfg, tmpl: tmpl}, nil
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.AWS.Region),
		Credentials: credentials.NewStaticCredentials(
			cfg.AWS.AccessKeyID,
			cfg.AWS.SecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &DocumentService{
		s3Client: s3.New(sess),
		config:   cfg,
		tmpl:     tmpl,
	}, nil
}

// Generate renders the policy document and stores it, returning the
// public URL persisted on the policy row.
func (s *DocumentService) Generate(ctx context.Context, policy *models.Policy, sale *models.Sale) (string, error) {
	data := map[string]interface{}{
		"PolicyNumber":    policy.PolicyNumber,
		"Insurer":         policy.Insurer,
		"ClientName":      sale.Client.Name,
		"ClientPhone":     sale.Client.Phone,
		"ProductName":     sale.Product.Name,
		"ProductCategory": sale.Product.Category,
		"Value":           sale.Value,
		"Installments":    sale.Installments,
		"CoverageStart":   policy.CoverageStart.Format("02/01/2006"),
		"CoverageEnd":     policy.CoverageEnd.Format("02/01/2006"),
	}

	var buf bytes.Buffer
	if err := s.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render policy document: %w", err)
	}

	key := fmt.Sprintf("apolices/%s.html", policy.PolicyNumber)

	if s.s3Client != nil {
		return s.uploadToS3(ctx, key, buf.Bytes())
	}
	return s.saveToLocal(key, buf.Bytes())
}

func (s *DocumentService) uploadToS3(ctx context.Context, key string, content []byte) (string, error) {
	params := &s3.PutObjectInput{
		Bucket:        aws.String(s.config.AWS.S3Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(content),
		ContentType:   aws.String("text/html; charset=utf-8"),
		ContentLength: aws.Int64(int64(len(content))),
	}

	if _, err := s.s3Client.PutObjectWithContext(ctx, params); err != nil {
		return "", fmt.Errorf("failed to upload policy document to S3: %w", err)
	}

	return s.getS3URL(key), nil
}

func (s *DocumentService) saveToLocal(key string, content []byte) (string, error) {
	path := filepath.Join(s.config.Policy.LocalStoragePath, key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create document directory: %w", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("failed to write policy document: %w", err)
	}

	logrus.WithField("path", path).Info("Policy document stored locally")

	return fmt.Sprintf("http://localhost:%s/uploads/%s", s.config.Server.Port, key), nil
}

func (s *DocumentService) getS3URL(key string) string {
	if s.config.AWS.CloudFrontURL != "" {
		return fmt.Sprintf("%s/%s", s.config.AWS.CloudFrontURL, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s",
		s.config.AWS.S3Bucket, s.config.AWS.Region, key)
}
