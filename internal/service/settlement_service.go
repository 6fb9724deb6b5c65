package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/opl-api/internal/models"
	appErrors "github.com/noah-isme/opl-api/pkg/errors"
	"github.com/noah-isme/opl-api/pkg/export"
)

// ExportFormat selects the settlement audit output encoding.
type ExportFormat string

const (
	FormatCSV ExportFormat = "csv"
	FormatPDF ExportFormat = "pdf"
)

type settlementStore interface {
	ListSettled(ctx context.Context, from, to time.Time, limit int) ([]models.SettlementRecord, error)
}

// SettlementService produces the settlement audit export: every terminally
// settled request joined with its escrow hold, over a date range.
type SettlementService struct {
	repo   settlementStore
	csv    *export.CSVExporter
	pdf    *export.PDFExporter
	logger *zap.Logger
}

// NewSettlementService constructs the service.
func NewSettlementService(repo settlementStore, logger *zap.Logger) *SettlementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettlementService{
		repo:   repo,
		csv:    export.NewCSVExporter(),
		pdf:    export.NewPDFExporter(),
		logger: logger,
	}
}

// ExportResult carries the rendered document and its metadata.
type ExportResult struct {
	Content     []byte
	ContentType string
	Filename    string
}

var settlementHeaders = []string{"Request ID", "Student", "Teacher", "Status", "Credits", "Settlement", "Settled At"}

// Export renders the settlement audit for the given range.
func (s *SettlementService) Export(ctx context.Context, format ExportFormat, from, to time.Time) (*ExportResult, error) {
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "export range end precedes start")
	}

	records, err := s.repo.ListSettled(ctx, from, to, 0)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load settled requests")
	}

	dataset := export.Dataset{Headers: settlementHeaders, Rows: make([]map[string]string, 0, len(records))}
	for _, rec := range records {
		settledAt := ""
		if rec.SettledAt != nil {
			settledAt = rec.SettledAt.UTC().Format(time.RFC3339)
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Request ID": rec.RequestID,
			"Student":    rec.StudentID,
			"Teacher":    rec.TeacherID,
			"Status":     string(rec.Status),
			"Credits":    strconv.FormatInt(rec.CreditAmount, 10),
			"Settlement": string(rec.HoldStatus),
			"Settled At": settledAt,
		})
	}

	stamp := time.Now().UTC().Format("20060102")
	switch format {
	case FormatCSV:
		content, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
		}
		return &ExportResult{
			Content:     content,
			ContentType: "text/csv",
			Filename:    fmt.Sprintf("settlement-audit-%s.csv", stamp),
		}, nil
	case FormatPDF:
		content, err := s.pdf.Render(dataset, "Settlement Audit")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf export")
		}
		return &ExportResult{
			Content:     content,
			ContentType: "application/pdf",
			Filename:    fmt.Sprintf("settlement-audit-%s.pdf", stamp),
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format: %s", format))
	}
}
