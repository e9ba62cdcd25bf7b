package service

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/khurram-Shahid09/CourseMat/internal/models"
	"github.com/khurram-Shahid09/CourseMat/pkg/storage"
)

type mockExportSource struct {
	rows       []models.EnrollmentExportRow
	lastFilter models.EnrollmentFilter
	err        error
}

func (m *mockExportSource) ListForExport(_ context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentExportRow, error) {
	m.lastFilter = filter
	if m.err != nil {
		return nil, m.err
	}
	return m.rows, nil
}

type memoryStorage struct {
	files map[string][]byte
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{files: make(map[string][]byte)}
}

func (m *memoryStorage) Save(filename string, data []byte) (string, error) {
	m.files[filename] = data
	return filename, nil
}

func (m *memoryStorage) Open(_ string) (*os.File, error) {
	return nil, os.ErrNotExist
}

func (m *memoryStorage) Delete(filename string) error {
	delete(m.files, filename)
	return nil
}

func (m *memoryStorage) CleanupOlderThan(_ time.Duration) ([]string, error) {
	return nil, nil
}

func exportRow(roll, student, course, batch string, feeType models.FeeType, due, paid int64) models.EnrollmentExportRow {
	return models.EnrollmentExportRow{
		EnrollmentDetail: models.EnrollmentDetail{
			Enrollment: models.Enrollment{
				RollNumber: roll,
				FeeType:    feeType,
				Status:     models.EnrollmentStatusEnrolled,
				EnrolledOn: time.Date(2026, time.February, 3, 0, 0, 0, 0, time.UTC),
			},
			StudentName: student,
			CourseTitle: course,
			BatchCode:   batch,
		},
		TotalDue:  due,
		TotalPaid: paid,
		FullyPaid: due > 0 && paid >= due,
	}
}

func newExportFixture(source *mockExportSource) (*ExportService, *memoryStorage) {
	store := newMemoryStorage()
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	svc := NewExportService(source, store, signer, ExportConfig{APIPrefix: "/api/v1"}, zap.NewNop(), nil, nil)
	return svc, store
}

func TestExportServiceGenerateFeeCSV(t *testing.T) {
	source := &mockExportSource{rows: []models.EnrollmentExportRow{
		exportRow("CRS-01-B1-0001", "Ada", "Go Basics", "CRS-01-B1", models.FeeTypeInstallment, 1000, 333),
		exportRow("CRS-01-B1-0002", "Linus", "Go Basics", "CRS-01-B1", models.FeeTypeOneTime, 800, 800),
	}}
	svc, store := newExportFixture(source)

	job := &models.ReportJob{
		ID:     "job-1",
		Type:   models.ReportTypeFees,
		Params: models.ReportJobParams{Format: models.ReportFormatCSV},
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.True(t, strings.HasPrefix(result.URL, "/api/v1/export/"))

	require.Len(t, store.files, 1)
	var content string
	for _, data := range store.files {
		content = string(data)
	}
	assert.Contains(t, content, "Roll Number,Student,Course,Batch,Fee Type,Total Fee,Paid,Pending,Fully Paid")
	assert.Contains(t, content, "CRS-01-B1-0001,Ada,Go Basics,CRS-01-B1,installment,1000,333,667,false")
	assert.Contains(t, content, "CRS-01-B1-0002,Linus,Go Basics,CRS-01-B1,one_time,800,800,0,true")
	assert.Contains(t, content, "TOTAL,,,,,1800,1133,667,")
}

func TestExportServiceGenerateEnrollmentPDF(t *testing.T) {
	source := &mockExportSource{rows: []models.EnrollmentExportRow{
		exportRow("CRS-01-B1-0001", "Ada", "Go Basics", "CRS-01-B1", models.FeeTypeOneTime, 800, 0),
	}}
	svc, store := newExportFixture(source)

	job := &models.ReportJob{
		ID:     "job-2",
		Type:   models.ReportTypeEnrollments,
		Params: models.ReportJobParams{Format: models.ReportFormatPDF},
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, models.ReportFormatPDF, result.Format)
	require.Len(t, store.files, 1)
	for name := range store.files {
		assert.True(t, strings.HasSuffix(name, ".pdf"))
	}
}

func TestExportServiceFilterPassthrough(t *testing.T) {
	source := &mockExportSource{}
	svc, _ := newExportFixture(source)

	courseID := "c1"
	feeType := models.FeeTypeInstallment
	job := &models.ReportJob{
		ID:   "job-3",
		Type: models.ReportTypeFees,
		Params: models.ReportJobParams{
			CourseID: &courseID,
			FeeType:  &feeType,
			Format:   models.ReportFormatCSV,
		},
	}
	_, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, "c1", source.lastFilter.CourseID)
	assert.Equal(t, models.FeeTypeInstallment, source.lastFilter.FeeType)
}

func TestExportServiceUnsupportedType(t *testing.T) {
	svc, _ := newExportFixture(&mockExportSource{})

	job := &models.ReportJob{ID: "job-4", Type: models.ReportType("bogus"), Params: models.ReportJobParams{Format: models.ReportFormatCSV}}
	_, err := svc.Generate(context.Background(), job)
	require.Error(t, err)
}
