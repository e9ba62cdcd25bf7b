package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/khurram-Shahid09/CourseMat/internal/dto"
	"github.com/khurram-Shahid09/CourseMat/internal/models"
	"github.com/khurram-Shahid09/CourseMat/internal/repository"
	appErrors "github.com/khurram-Shahid09/CourseMat/pkg/errors"
	"github.com/khurram-Shahid09/CourseMat/pkg/jobs"
)

type mockReportStore struct {
	jobsByID map[string]*models.ReportJob
	updates  []repository.UpdateReportJobParams
	queued   []models.ReportJob
}

func newMockReportStore() *mockReportStore {
	return &mockReportStore{jobsByID: make(map[string]*models.ReportJob)}
}

func (m *mockReportStore) Create(_ context.Context, job *models.ReportJob) error {
	if job.ID == "" {
		job.ID = "job-1"
	}
	job.CreatedAt = time.Now().UTC()
	m.jobsByID[job.ID] = job
	return nil
}

func (m *mockReportStore) GetByID(_ context.Context, id string) (*models.ReportJob, error) {
	job, ok := m.jobsByID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return job, nil
}

func (m *mockReportStore) Update(_ context.Context, id string, params repository.UpdateReportJobParams) error {
	m.updates = append(m.updates, params)
	if job, ok := m.jobsByID[id]; ok {
		if params.Status != nil {
			job.Status = *params.Status
		}
		if params.Progress != nil {
			job.Progress = *params.Progress
		}
		if params.ResultURL != nil {
			job.ResultURL = params.ResultURL
		}
		if params.ErrorMessage != nil {
			job.ErrorMessage = params.ErrorMessage
		}
	}
	return nil
}

func (m *mockReportStore) ListQueued(_ context.Context, _ int) ([]models.ReportJob, error) {
	return m.queued, nil
}

func (m *mockReportStore) ListFinishedBefore(_ context.Context, _ time.Time, _ int) ([]models.ReportJob, error) {
	return nil, nil
}

type mockDispatcher struct {
	enqueued []jobs.Job
	err      error
}

func (m *mockDispatcher) Enqueue(job jobs.Job) error {
	if m.err != nil {
		return m.err
	}
	m.enqueued = append(m.enqueued, job)
	return nil
}

func TestReportServiceCreateJob(t *testing.T) {
	store := newMockReportStore()
	queue := &mockDispatcher{}
	svc := NewReportService(store, queue, nil, zap.NewNop(), ReportServiceConfig{})

	resp, err := svc.CreateJob(context.Background(), dto.ReportRequest{
		Type:   models.ReportTypeFees,
		Format: models.ReportFormatCSV,
	}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusQueued, resp.Status)
	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, resp.ID, queue.enqueued[0].ID)
	assert.Equal(t, "admin-1", store.jobsByID[resp.ID].CreatedBy)
}

func TestReportServiceCreateJobRejectsUnknownType(t *testing.T) {
	svc := NewReportService(newMockReportStore(), &mockDispatcher{}, nil, zap.NewNop(), ReportServiceConfig{})

	_, err := svc.CreateJob(context.Background(), dto.ReportRequest{
		Type:   models.ReportType("grades"),
		Format: models.ReportFormatCSV,
	}, "admin-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestReportServiceCreateJobEnqueueFailureMarksFailed(t *testing.T) {
	store := newMockReportStore()
	queue := &mockDispatcher{err: assert.AnError}
	svc := NewReportService(store, queue, nil, zap.NewNop(), ReportServiceConfig{})

	_, err := svc.CreateJob(context.Background(), dto.ReportRequest{
		Type:   models.ReportTypeEnrollments,
		Format: models.ReportFormatPDF,
	}, "admin-1")
	require.Error(t, err)
	require.Len(t, store.updates, 1)
	require.NotNil(t, store.updates[0].Status)
	assert.Equal(t, models.ReportStatusFailed, *store.updates[0].Status)
}

func TestReportServiceGetStatusOwnership(t *testing.T) {
	store := newMockReportStore()
	store.jobsByID["job-1"] = &models.ReportJob{ID: "job-1", Status: models.ReportStatusFinished, CreatedBy: "user-1"}
	svc := NewReportService(store, &mockDispatcher{}, nil, zap.NewNop(), ReportServiceConfig{})

	_, err := svc.GetStatus(context.Background(), "job-1", Actor{UserID: "user-2", Role: models.RoleTeacher})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	resp, err := svc.GetStatus(context.Background(), "job-1", Actor{UserID: "user-1", Role: models.RoleTeacher})
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusFinished, resp.Status)

	_, err = svc.GetStatus(context.Background(), "job-1", Actor{UserID: "other", Role: models.RoleAdmin})
	assert.NoError(t, err)
}

func TestReportServiceRecoverPendingJobs(t *testing.T) {
	store := newMockReportStore()
	store.queued = []models.ReportJob{
		{ID: "job-1", Type: models.ReportTypeFees},
		{ID: "job-2", Type: models.ReportTypeEnrollments},
	}
	queue := &mockDispatcher{}
	svc := NewReportService(store, queue, nil, zap.NewNop(), ReportServiceConfig{})

	svc.RecoverPendingJobs(context.Background())
	assert.Len(t, queue.enqueued, 2)
}

type stubGenerator struct {
	result *ExportResult
	err    error
}

func (s *stubGenerator) Generate(_ context.Context, _ *models.ReportJob) (*ExportResult, error) {
	return s.result, s.err
}

func TestReportWorkerHandleSuccess(t *testing.T) {
	store := newMockReportStore()
	store.jobsByID["job-1"] = &models.ReportJob{ID: "job-1", Type: models.ReportTypeFees, Status: models.ReportStatusQueued}
	worker := NewReportWorker(store, &stubGenerator{result: &ExportResult{URL: "/api/v1/export/tok"}}, nil, 3, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1"})
	require.NoError(t, err)
	job := store.jobsByID["job-1"]
	assert.Equal(t, models.ReportStatusFinished, job.Status)
	assert.Equal(t, 100, job.Progress)
	require.NotNil(t, job.ResultURL)
	assert.Equal(t, "/api/v1/export/tok", *job.ResultURL)
}

func TestReportWorkerHandleRetriesThenFails(t *testing.T) {
	store := newMockReportStore()
	store.jobsByID["job-1"] = &models.ReportJob{ID: "job-1", Type: models.ReportTypeFees, Status: models.ReportStatusQueued}
	worker := NewReportWorker(store, &stubGenerator{err: assert.AnError}, nil, 2, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 1})
	require.Error(t, err)
	assert.Equal(t, models.ReportStatusQueued, store.jobsByID["job-1"].Status)

	err = worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 2})
	require.Error(t, err)
	assert.Equal(t, models.ReportStatusFailed, store.jobsByID["job-1"].Status)
}
