package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/khurram-Shahid09/CourseMat/internal/models"
	"github.com/khurram-Shahid09/CourseMat/pkg/export"
	"github.com/khurram-Shahid09/CourseMat/pkg/storage"
)

type exportDataSource interface {
	ListForExport(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentExportRow, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService builds report datasets and persists rendered files.
type ExportService struct {
	enrollments exportDataSource
	storage     fileStorage
	csv         csvRenderer
	pdf         pdfRenderer
	signer      *storage.SignedURLSigner
	logger      *zap.Logger
	cfg         ExportConfig
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// NewExportService constructs an ExportService.
func NewExportService(enrollments exportDataSource, storage fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		enrollments: enrollments,
		storage:     storage,
		csv:         csv,
		pdf:         pdf,
		signer:      signer,
		logger:      logger,
		cfg:         cfg,
	}
}

// Generate builds the dataset according to the job definition and stores the
// rendered export.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	signedURL := strings.TrimRight(s.cfg.APIPrefix, "/")
	if signedURL == "" {
		signedURL = "/api/v1"
	}
	signedURL = fmt.Sprintf("%s/export/%s", signedURL, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	scope := "all"
	if job.Params.BatchID != nil && *job.Params.BatchID != "" {
		scope = sanitizeFilename(*job.Params.BatchID)
	} else if job.Params.CourseID != nil && *job.Params.CourseID != "" {
		scope = sanitizeFilename(*job.Params.CourseID)
	}
	return fmt.Sprintf("%s_%s_%s.%s", strings.ToLower(string(job.Type)), scope, timestamp, job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, string, error) {
	switch job.Type {
	case models.ReportTypeFees:
		return s.buildFeeDataset(ctx, job.Params)
	case models.ReportTypeEnrollments:
		return s.buildEnrollmentDataset(ctx, job.Params)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported report type %s", job.Type)
	}
}

func (s *ExportService) buildFeeDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	rows, err := s.enrollments.ListForExport(ctx, exportFilter(params))
	if err != nil {
		return export.Dataset{}, "", err
	}
	dataRows := make([]map[string]string, 0, len(rows))
	var sumDue, sumPaid, sumPending int64
	for _, row := range rows {
		pending := row.TotalDue - row.TotalPaid
		if pending < 0 {
			pending = 0
		}
		sumDue += row.TotalDue
		sumPaid += row.TotalPaid
		sumPending += pending
		dataRows = append(dataRows, map[string]string{
			"Roll Number": row.RollNumber,
			"Student":     row.StudentName,
			"Course":      row.CourseTitle,
			"Batch":       row.BatchCode,
			"Fee Type":    string(row.FeeType),
			"Total Fee":   fmt.Sprintf("%d", row.TotalDue),
			"Paid":        fmt.Sprintf("%d", row.TotalPaid),
			"Pending":     fmt.Sprintf("%d", pending),
			"Fully Paid":  fmt.Sprintf("%t", row.FullyPaid),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Roll Number", "Student", "Course", "Batch", "Fee Type", "Total Fee", "Paid", "Pending", "Fully Paid"},
		Rows:    dataRows,
		Footer: map[string]string{
			"Roll Number": "TOTAL",
			"Total Fee":   fmt.Sprintf("%d", sumDue),
			"Paid":        fmt.Sprintf("%d", sumPaid),
			"Pending":     fmt.Sprintf("%d", sumPending),
		},
	}
	return dataset, "Fee Collection Report", nil
}

func (s *ExportService) buildEnrollmentDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	rows, err := s.enrollments.ListForExport(ctx, exportFilter(params))
	if err != nil {
		return export.Dataset{}, "", err
	}
	dataRows := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		dataRows = append(dataRows, map[string]string{
			"Roll Number":  row.RollNumber,
			"Student":      row.StudentName,
			"Student Code": row.StudentCode,
			"Course":       fmt.Sprintf("%s (%s)", row.CourseTitle, row.CourseCode),
			"Batch":        row.BatchCode,
			"Status":       string(row.Status),
			"Enrolled On":  row.EnrolledOn.UTC().Format("2006-01-02"),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Roll Number", "Student", "Student Code", "Course", "Batch", "Status", "Enrolled On"},
		Rows:    dataRows,
	}
	return dataset, "Enrollment Report", nil
}

func exportFilter(params models.ReportJobParams) models.EnrollmentFilter {
	filter := models.EnrollmentFilter{
		CourseID: deref(params.CourseID),
		BatchID:  deref(params.BatchID),
	}
	if params.FeeType != nil {
		filter.FeeType = *params.FeeType
	}
	return filter
}

func deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
