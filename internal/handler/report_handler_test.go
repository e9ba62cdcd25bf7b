package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/khurram-Shahid09/CourseMat/internal/middleware"
	"github.com/khurram-Shahid09/CourseMat/internal/models"
	"github.com/khurram-Shahid09/CourseMat/internal/repository"
	"github.com/khurram-Shahid09/CourseMat/internal/service"
	"github.com/khurram-Shahid09/CourseMat/pkg/jobs"
)

type fakeReportStore struct {
	jobs map[string]*models.ReportJob
}

func newFakeReportStore() *fakeReportStore {
	return &fakeReportStore{jobs: map[string]*models.ReportJob{}}
}

func (f *fakeReportStore) Create(_ context.Context, job *models.ReportJob) error {
	if job.ID == "" {
		job.ID = "job-1"
	}
	stored := *job
	f.jobs[job.ID] = &stored
	return nil
}

func (f *fakeReportStore) GetByID(_ context.Context, id string) (*models.ReportJob, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, context.Canceled
	}
	return job, nil
}

func (f *fakeReportStore) Update(_ context.Context, id string, params repository.UpdateReportJobParams) error {
	job, ok := f.jobs[id]
	if !ok {
		return nil
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	return nil
}

func (f *fakeReportStore) ListQueued(context.Context, int) ([]models.ReportJob, error) {
	return nil, nil
}

func (f *fakeReportStore) ListFinishedBefore(context.Context, time.Time, int) ([]models.ReportJob, error) {
	return nil, nil
}

type fakeDispatcher struct {
	enqueued []jobs.Job
}

func (f *fakeDispatcher) Enqueue(job jobs.Job) error {
	f.enqueued = append(f.enqueued, job)
	return nil
}

func newReportHandlerFixture() (*ReportHandler, *fakeReportStore, *fakeDispatcher) {
	store := newFakeReportStore()
	dispatcher := &fakeDispatcher{}
	svc := service.NewReportService(store, dispatcher, nil, zap.NewNop(), service.ReportServiceConfig{})
	return NewReportHandler(svc), store, dispatcher
}

func TestReportHandlerCreateRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _, _ := newReportHandlerFixture()

	body := bytes.NewBufferString(`{"type":"enrollments","format":"csv"}`)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/reports", body)
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Create(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestReportHandlerCreateQueuesJob(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _, dispatcher := newReportHandlerFixture()

	body := bytes.NewBufferString(`{"type":"enrollments","format":"csv"}`)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/reports", body)
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})

	handler.Create(c)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, dispatcher.enqueued, 1)

	var envelope responseEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	assert.Equal(t, string(models.ReportStatusQueued), envelope.Data["status"])
}

func TestReportHandlerCreateRejectsUnknownType(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _, dispatcher := newReportHandlerFixture()

	body := bytes.NewBufferString(`{"type":"payroll","format":"csv"}`)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/reports", body)
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})

	handler.Create(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, dispatcher.enqueued)
}

func TestReportHandlerStatusForbiddenForOtherUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, store, _ := newReportHandlerFixture()
	store.jobs["job-1"] = &models.ReportJob{ID: "job-1", Status: models.ReportStatusQueued, CreatedBy: "teacher-1"}

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/reports/job-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "job-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "teacher-2", Role: models.RoleTeacher})

	handler.Status(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestReportHandlerStatusCreatorCanRead(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, store, _ := newReportHandlerFixture()
	url := "/api/v1/export/tok"
	store.jobs["job-1"] = &models.ReportJob{ID: "job-1", Status: models.ReportStatusFinished, Progress: 100, ResultURL: &url, CreatedBy: "teacher-1"}

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/reports/job-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "job-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher})

	handler.Status(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope responseEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	assert.Equal(t, url, envelope.Data["result_url"])
}
