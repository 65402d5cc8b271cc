package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"ucode_backend/internal/model"
	"ucode_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRenderer struct {
	calls []CertificateData
	err   error
}

func (r *stubRenderer) Render(data CertificateData) ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.calls = append(r.calls, data)
	return []byte("%PDF-stub " + data.ID), nil
}

// completeCourse 让用户完成一门只有一个课时的课程
func completeCourse(t *testing.T, env *testEnv, user *model.User, course *model.Course) {
	t.Helper()
	lesson := env.saveLesson(t, &LessonInput{
		CourseID: course.ID, Title: "Only", MaxScore: 100, SerialNumber: 1,
		Components: []ComponentInput{textInput(1, 80)},
	})
	res, err := env.Scoring.StartLesson(context.Background(), user.ID, lesson.ID)
	require.NoError(t, err)
	require.True(t, res.CourseCompleted)
}

func newCertificateService(env *testEnv, renderer CertificateRenderer) *CertificateService {
	return NewCertificateService(env.Certificates, env.Courses, env.Users, env.Progress, renderer, env.Storage, env.Cfg)
}

func TestIssue_Preconditions(t *testing.T) {
	env := newTestEnv(t)
	certs := newCertificateService(env, &stubRenderer{})
	user := env.createUser(t, "alice")
	course := env.createCourse(t, "Go")

	_, _, err := certs.Issue(user.ID, 999)
	assert.ErrorIs(t, err, util.ErrCourseNotFound)

	_, _, err = certs.Issue(user.ID, course.ID)
	assert.ErrorIs(t, err, util.ErrCourseNotJoined)

	_, err = env.Progress.EnsureUserCourse(user.ID, course.ID)
	require.NoError(t, err)
	_, _, err = certs.Issue(user.ID, course.ID)
	assert.ErrorIs(t, err, util.ErrCourseNotCompleted)
	assert.ErrorIs(t, err, util.ErrPrecondition)
}

func TestIssue_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	certs := newCertificateService(env, &stubRenderer{})
	certs.now = func() time.Time { return time.Date(2026, 3, 9, 23, 30, 0, 0, time.UTC) }
	user := env.createUser(t, "alice")
	course := env.createCourse(t, "Go")
	completeCourse(t, env, user, course)

	first, created, err := certs.Issue(user.ID, course.ID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Len(t, first.ID, 36)
	assert.Equal(t, "2026-03-09", first.IssuedAt.Format(util.DateFormat))

	second, created, err := certs.Issue(user.ID, course.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, env.DB.Model(&model.Certificate{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestDownload_RendersAndStores(t *testing.T) {
	env := newTestEnv(t)
	renderer := &stubRenderer{}
	certs := newCertificateService(env, renderer)
	user := env.createUser(t, "alice")
	require.NoError(t, env.DB.Model(user).Updates(map[string]interface{}{"first_name": "Alice", "last_name": "Liddell"}).Error)
	course := env.createCourse(t, "Go")
	completeCourse(t, env, user, course)

	cert, pdf, err := certs.Download(context.Background(), user.ID, course.ID)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))

	require.Len(t, renderer.calls, 1)
	data := renderer.calls[0]
	assert.Equal(t, "Alice Liddell", data.RecipientName)
	assert.Equal(t, "Go", data.CourseName)
	assert.Equal(t, "junior", data.Complexity)
	assert.Equal(t, "https://ucode.test/verify-certificate/"+cert.ID, data.VerifyURL)

	assert.Contains(t, env.Storage.keys(), "certificates/"+cert.ID+".pdf")
	stored, err := env.Certificates.FindByID(cert.ID)
	require.NoError(t, err)
	assert.Equal(t, "/uploads/certificates/"+cert.ID+".pdf", stored.FileURL)
}

func TestDownload_StorageFailureStillServesPDF(t *testing.T) {
	env := newTestEnv(t)
	env.Storage.err = errors.New("bucket unavailable")
	certs := newCertificateService(env, &stubRenderer{})
	user := env.createUser(t, "alice")
	course := env.createCourse(t, "Go")
	completeCourse(t, env, user, course)

	cert, pdf, err := certs.Download(context.Background(), user.ID, course.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, pdf)
	assert.Empty(t, cert.FileURL)
}

func TestDownload_RendererError(t *testing.T) {
	env := newTestEnv(t)
	certs := newCertificateService(env, &stubRenderer{err: errors.New("boom")})
	user := env.createUser(t, "alice")
	course := env.createCourse(t, "Go")
	completeCourse(t, env, user, course)

	_, _, err := certs.Download(context.Background(), user.ID, course.ID)
	assert.EqualError(t, err, "boom")
}

func TestVerify(t *testing.T) {
	env := newTestEnv(t)
	certs := newCertificateService(env, &stubRenderer{})
	user := env.createUser(t, "alice")
	course := env.createCourse(t, "Go")
	completeCourse(t, env, user, course)

	cert, _, err := certs.Issue(user.ID, course.ID)
	require.NoError(t, err)

	v, err := certs.Verify(cert.ID)
	require.NoError(t, err)
	assert.Equal(t, cert.ID, v.ID)
	assert.Equal(t, "alice", v.RecipientName)
	assert.Equal(t, "alice", v.Username)
	assert.Equal(t, "Go", v.CourseName)
	assert.Equal(t, course.ID, v.CourseID)

	_, err = certs.Verify("00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, util.ErrCertificateNotFound)
}

func TestVerifyURL(t *testing.T) {
	env := newTestEnv(t)
	certs := newCertificateService(env, &stubRenderer{})

	env.Cfg.Certificate.VerifyBaseURL = "https://ucode.test/verify/"
	assert.Equal(t, "https://ucode.test/verify/abc", certs.VerifyURL("abc"))

	env.Cfg.Certificate.VerifyBaseURL = ""
	assert.Empty(t, certs.VerifyURL("abc"))
}

func TestPDFCertificateRenderer(t *testing.T) {
	renderer, err := NewPDFCertificateRenderer()
	require.NoError(t, err)

	pdf, err := renderer.Render(CertificateData{
		ID:            "6f1c0d4e-0000-4000-8000-000000000000",
		RecipientName: "Alice Liddell",
		CourseName:    "Go Fundamentals",
		Complexity:    "junior",
		IssuedAt:      time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
		VerifyURL:     "https://ucode.test/verify-certificate/6f1c0d4e",
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
	assert.Greater(t, len(pdf), 1024)
}
