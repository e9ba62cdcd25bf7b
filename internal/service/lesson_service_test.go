package service

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/khurram-Shahid09/CourseMat/internal/models"
	"github.com/khurram-Shahid09/CourseMat/pkg/config"
	appErrors "github.com/khurram-Shahid09/CourseMat/pkg/errors"
)

type mockLessonRepo struct {
	lessons map[string]*models.LessonDetail
	images  map[string]*models.LessonImage
	visible map[string]bool
	taught  map[string]bool

	lastFilter  models.LessonFilter
	created     *models.Lesson
	createdWith []string
	deletedID   string
	addedImage  *models.LessonImage
}

func newMockLessonRepo() *mockLessonRepo {
	return &mockLessonRepo{
		lessons: make(map[string]*models.LessonDetail),
		images:  make(map[string]*models.LessonImage),
		visible: make(map[string]bool),
		taught:  make(map[string]bool),
	}
}

func (m *mockLessonRepo) List(_ context.Context, filter models.LessonFilter) ([]models.LessonDetail, int, error) {
	m.lastFilter = filter
	return nil, 0, nil
}

func (m *mockLessonRepo) FindByID(_ context.Context, id string) (*models.LessonDetail, error) {
	lesson, ok := m.lessons[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return lesson, nil
}

func (m *mockLessonRepo) Create(_ context.Context, lesson *models.Lesson, studentIDs []string) error {
	if lesson.ID == "" {
		lesson.ID = "lesson-1"
	}
	m.created = lesson
	m.createdWith = studentIDs
	m.lessons[lesson.ID] = &models.LessonDetail{Lesson: *lesson, StudentIDs: studentIDs}
	return nil
}

func (m *mockLessonRepo) Update(_ context.Context, lesson *models.Lesson, studentIDs []string) error {
	m.lessons[lesson.ID] = &models.LessonDetail{Lesson: *lesson, StudentIDs: studentIDs}
	return nil
}

func (m *mockLessonRepo) Delete(_ context.Context, id string) error {
	m.deletedID = id
	delete(m.lessons, id)
	return nil
}

func (m *mockLessonRepo) VisibleToStudent(_ context.Context, lessonID, studentID string) (bool, error) {
	return m.visible[lessonID+"/"+studentID], nil
}

func (m *mockLessonRepo) TaughtBy(_ context.Context, lessonID, teacherID string) (bool, error) {
	return m.taught[lessonID+"/"+teacherID], nil
}

func (m *mockLessonRepo) AddImage(_ context.Context, image *models.LessonImage) error {
	if image.ID == "" {
		image.ID = "img-1"
	}
	m.addedImage = image
	m.images[image.ID] = image
	return nil
}

func (m *mockLessonRepo) ListImages(_ context.Context, lessonID string) ([]models.LessonImage, error) {
	out := []models.LessonImage{}
	for _, img := range m.images {
		if img.LessonID == lessonID {
			out = append(out, *img)
		}
	}
	return out, nil
}

func (m *mockLessonRepo) FindImage(_ context.Context, imageID string) (*models.LessonImage, error) {
	img, ok := m.images[imageID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return img, nil
}

func (m *mockLessonRepo) DeleteImage(_ context.Context, imageID string) error {
	delete(m.images, imageID)
	return nil
}

type mockFileStore struct {
	saved   map[string][]byte
	deleted []string
}

func newMockFileStore() *mockFileStore {
	return &mockFileStore{saved: make(map[string][]byte)}
}

func (m *mockFileStore) SaveStream(filename string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.saved[filename] = data
	return filename, nil
}

func (m *mockFileStore) Open(_ string) (*os.File, error) {
	return nil, os.ErrNotExist
}

func (m *mockFileStore) Delete(filename string) error {
	m.deleted = append(m.deleted, filename)
	return nil
}

func lessonUploads() config.UploadsConfig {
	return config.UploadsConfig{
		MaxFileSizeBytes: 1024,
		AllowedMIMEs:     []string{"image/jpeg", "image/png"},
	}
}

func newLessonFixture() (*LessonService, *mockLessonRepo, *mockBatchReader, *mockFileStore) {
	repo := newMockLessonRepo()
	batches := &mockBatchReader{batches: make(map[string]*models.BatchDetail)}
	store := newMockFileStore()
	svc := NewLessonService(repo, batches, store, lessonUploads(), nil, zap.NewNop())
	return svc, repo, batches, store
}

func TestLessonListScopesStudent(t *testing.T) {
	svc, repo, _, _ := newLessonFixture()

	_, _, err := svc.List(context.Background(), Actor{Role: models.RoleStudent, StudentID: "s1"}, models.LessonFilter{})
	require.NoError(t, err)
	assert.Equal(t, "s1", repo.lastFilter.VisibleToStudentID)

	_, _, err = svc.List(context.Background(), Actor{Role: models.RoleStudent}, models.LessonFilter{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestLessonListScopesTeacher(t *testing.T) {
	svc, repo, _, _ := newLessonFixture()

	_, _, err := svc.List(context.Background(), Actor{Role: models.RoleTeacher, TeacherID: "t1"}, models.LessonFilter{})
	require.NoError(t, err)
	assert.Equal(t, "t1", repo.lastFilter.TaughtByTeacherID)
}

func TestLessonGetStudentVisibility(t *testing.T) {
	svc, repo, _, _ := newLessonFixture()
	repo.lessons["l1"] = &models.LessonDetail{Lesson: models.Lesson{ID: "l1", BatchID: "b1"}}
	repo.visible["l1/s1"] = true

	_, err := svc.Get(context.Background(), Actor{Role: models.RoleStudent, StudentID: "s1"}, "l1")
	assert.NoError(t, err)

	_, err = svc.Get(context.Background(), Actor{Role: models.RoleStudent, StudentID: "s2"}, "l1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestLessonCreateTeacherOwnBatchOnly(t *testing.T) {
	svc, repo, batches, _ := newLessonFixture()
	teacherID := "6fa459ea-ee8a-4ca4-894e-db77e160355e"
	otherID := "7fa459ea-ee8a-4ca4-894e-db77e160355e"
	batchID := "16fd2706-8baf-433b-82eb-8c7fada847da"
	batches.batches[batchID] = &models.BatchDetail{Batch: models.Batch{ID: batchID, TeacherID: &teacherID}}

	req := CreateLessonRequest{BatchID: batchID, Title: "Pointers", Content: "Slides"}
	_, err := svc.Create(context.Background(), Actor{Role: models.RoleTeacher, TeacherID: otherID}, req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	created, err := svc.Create(context.Background(), Actor{Role: models.RoleTeacher, TeacherID: teacherID}, req)
	require.NoError(t, err)
	require.NotNil(t, repo.created)
	require.NotNil(t, created.TeacherID)
	assert.Equal(t, teacherID, *created.TeacherID)
}

func TestLessonCreateUnknownBatch(t *testing.T) {
	svc, _, _, _ := newLessonFixture()

	req := CreateLessonRequest{BatchID: "16fd2706-8baf-433b-82eb-8c7fada847da", Title: "Intro", Content: "Notes"}
	_, err := svc.Create(context.Background(), Actor{Role: models.RoleAdmin}, req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestLessonAttachImage(t *testing.T) {
	svc, repo, _, store := newLessonFixture()
	repo.lessons["l1"] = &models.LessonDetail{Lesson: models.Lesson{ID: "l1"}}

	image, err := svc.AttachImage(context.Background(), "l1", ImageUpload{
		FileName:    "diagram.png",
		ContentType: "image/png",
		Size:        4,
		Reader:      bytes.NewReader([]byte("data")),
	})
	require.NoError(t, err)
	assert.Equal(t, "l1", image.LessonID)
	assert.Contains(t, image.Path, "lessons/l1/")
	assert.Len(t, store.saved, 1)
}

func TestLessonAttachImageRejectsType(t *testing.T) {
	svc, repo, _, _ := newLessonFixture()
	repo.lessons["l1"] = &models.LessonDetail{Lesson: models.Lesson{ID: "l1"}}

	_, err := svc.AttachImage(context.Background(), "l1", ImageUpload{
		FileName:    "malware.exe",
		ContentType: "application/octet-stream",
		Size:        4,
		Reader:      bytes.NewReader([]byte("data")),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestLessonAttachImageRejectsOversize(t *testing.T) {
	svc, repo, _, _ := newLessonFixture()
	repo.lessons["l1"] = &models.LessonDetail{Lesson: models.Lesson{ID: "l1"}}

	_, err := svc.AttachImage(context.Background(), "l1", ImageUpload{
		FileName:    "big.png",
		ContentType: "image/png",
		Size:        4096,
		Reader:      bytes.NewReader(make([]byte, 4096)),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestLessonDeleteRemovesFiles(t *testing.T) {
	svc, repo, _, store := newLessonFixture()
	repo.lessons["l1"] = &models.LessonDetail{Lesson: models.Lesson{ID: "l1"}}
	repo.images["img-1"] = &models.LessonImage{ID: "img-1", LessonID: "l1", Path: "lessons/l1/a.png"}

	require.NoError(t, svc.Delete(context.Background(), "l1"))
	assert.Equal(t, "l1", repo.deletedID)
	assert.Equal(t, []string{"lessons/l1/a.png"}, store.deleted)
}
