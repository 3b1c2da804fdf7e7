package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"layout-translator/internal/document"
	"layout-translator/internal/reconstruct"
	"layout-translator/internal/results"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeRunner copies the input to the output path, or fails with err.
// When gate is set, it blocks until the gate is closed.
type fakeRunner struct {
	calls   int32
	err     error
	gate    chan struct{}
	timeout atomic.Int64
}

func (f *fakeRunner) Translate(ctx context.Context, input string, job reconstruct.Job) (*reconstruct.Report, error) {
	atomic.AddInt32(&f.calls, 1)
	f.timeout.Store(int64(job.Timeout))
	job.OnStatus(reconstruct.Status{Phase: reconstruct.PhaseExtracting, Progress: 5})
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	data, err := os.ReadFile(input)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(job.OutputPath, data, 0644); err != nil {
		return nil, err
	}
	job.OnStatus(reconstruct.Status{Phase: reconstruct.PhaseComplete, Progress: 100})
	return &reconstruct.Report{
		SourceLang: "en",
		TargetLang: job.TargetLang,
		Pages:      1,
		Spans:      3,
		Placed:     3,
		OutputPath: job.OutputPath,
		Notes:      []string{"original text is covered"},
	}, nil
}

// TranslateText upper-cases text; "fail" is rejected as invalid input
func (f *fakeRunner) TranslateText(_ context.Context, text, sourceLang, targetLang string) (string, string, error) {
	if text == "fail" {
		return "", "", document.NewError(document.ErrInvalidInput, "rejected", nil)
	}
	if sourceLang == "" || sourceLang == reconstruct.AutoDetect {
		sourceLang = "en"
	}
	return strings.ToUpper(text), sourceLang, nil
}

func newTestServer(t *testing.T, runner Runner) (*Server, *results.Manager) {
	t.Helper()
	store, err := results.NewManager(t.TempDir())
	require.NoError(t, err)
	s := New(runner, store, Config{})
	t.Cleanup(s.Close)
	return s, store
}

func upload(t *testing.T, h http.Handler, name string, content []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if name != "" {
		part, err := w.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/translate/pdf", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decodeJob(t *testing.T, rec *httptest.ResponseRecorder) results.Job {
	t.Helper()
	var job results.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job), rec.Body.String())
	return job
}

var pdfBytes = []byte("%PDF-1.4 fake")

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, &fakeRunner{})

	rec := get(s.Handler(), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestSubmitAndDownload(t *testing.T) {
	runner := &fakeRunner{}
	s, _ := newTestServer(t, runner)
	h := s.Handler()

	rec := upload(t, h, "paper.pdf", pdfBytes, map[string]string{"target_lang": "German"})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	job := decodeJob(t, rec)
	assert.Equal(t, "de", job.TargetLang)
	assert.Equal(t, reconstruct.AutoDetect, job.SourceLang)
	assert.Equal(t, results.StatusPending, job.Status)

	s.Wait()

	rec = get(h, "/api/jobs/"+job.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	done := decodeJob(t, rec)
	assert.Equal(t, results.StatusComplete, done.Status)
	assert.Equal(t, 100, done.Progress)
	assert.Equal(t, "en", done.SourceLang)
	assert.Equal(t, 3, done.Spans)
	assert.NotEmpty(t, done.SourceMD5)
	assert.Equal(t, []string{"original text is covered"}, done.Notes)

	rec = get(h, "/api/files/"+job.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, pdfBytes, rec.Body.Bytes())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "paper_de.pdf")

	rec = get(h, "/api/jobs")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Jobs []results.Job `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Jobs, 1)
}

func TestSubmit_ReusesCompletedTranslation(t *testing.T) {
	runner := &fakeRunner{}
	s, _ := newTestServer(t, runner)
	h := s.Handler()

	first := decodeJob(t, upload(t, h, "a.pdf", pdfBytes, map[string]string{"target_lang": "de"}))
	s.Wait()

	rec := upload(t, h, "a-copy.pdf", pdfBytes, map[string]string{"target_lang": "de"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, first.ID, decodeJob(t, rec).ID)
	assert.EqualValues(t, 1, atomic.LoadInt32(&runner.calls))

	rec = upload(t, h, "a.pdf", pdfBytes, map[string]string{"target_lang": "de", "force": "true"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.NotEqual(t, first.ID, decodeJob(t, rec).ID)

	rec = upload(t, h, "a.pdf", pdfBytes, map[string]string{"target_lang": "zh"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	s.Wait()
	assert.EqualValues(t, 3, atomic.LoadInt32(&runner.calls))
}

func TestSubmit_Validation(t *testing.T) {
	s, store := newTestServer(t, &fakeRunner{})
	h := s.Handler()

	tests := []struct {
		name   string
		file   string
		fields map[string]string
	}{
		{"missing file", "", map[string]string{"target_lang": "de"}},
		{"not a pdf", "notes.txt", map[string]string{"target_lang": "de"}},
		{"missing target", "a.pdf", nil},
		{"unknown target", "a.pdf", map[string]string{"target_lang": "klingon"}},
		{"unknown source", "a.pdf", map[string]string{"target_lang": "de", "source_lang": "elvish"}},
		{"bad timeout", "a.pdf", map[string]string{"target_lang": "de", "timeout": "soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := upload(t, h, tt.file, pdfBytes, tt.fields)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}

	jobs, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestSubmit_TooLarge(t *testing.T) {
	store, err := results.NewManager(t.TempDir())
	require.NoError(t, err)
	s := New(&fakeRunner{}, store, Config{MaxUploadBytes: 64})
	t.Cleanup(s.Close)

	rec := upload(t, s.Handler(), "big.pdf", bytes.Repeat([]byte("x"), 4096), map[string]string{"target_lang": "de"})
	assert.NotEqual(t, http.StatusAccepted, rec.Code)
}

func TestJobFailure(t *testing.T) {
	s, _ := newTestServer(t, &fakeRunner{err: errors.New("provider unavailable")})
	h := s.Handler()

	job := decodeJob(t, upload(t, h, "a.pdf", pdfBytes, map[string]string{"target_lang": "de"}))
	s.Wait()

	failed := decodeJob(t, get(h, "/api/jobs/"+job.ID))
	assert.Equal(t, results.StatusError, failed.Status)
	assert.Contains(t, failed.Error, "provider unavailable")

	rec := get(h, "/api/files/"+job.ID)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRunningJob(t *testing.T) {
	runner := &fakeRunner{gate: make(chan struct{})}
	s, _ := newTestServer(t, runner)
	h := s.Handler()

	job := decodeJob(t, upload(t, h, "a.pdf", pdfBytes, map[string]string{"target_lang": "de"}))

	require.Eventually(t, func() bool {
		return decodeJob(t, get(h, "/api/jobs/"+job.ID)).Status == results.StatusRunning
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, http.StatusConflict, get(h, "/api/files/"+job.ID).Code)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/jobs/"+job.ID, nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(runner.gate)
	s.Wait()

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/jobs/"+job.ID, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, http.StatusNotFound, get(h, "/api/jobs/"+job.ID).Code)
}

func TestUnknownJob(t *testing.T) {
	s, _ := newTestServer(t, &fakeRunner{})
	h := s.Handler()

	assert.Equal(t, http.StatusNotFound, get(h, "/api/jobs/does-not-exist").Code)
	assert.Equal(t, http.StatusNotFound, get(h, "/api/files/does-not-exist").Code)
}

func TestRecoverInterrupted(t *testing.T) {
	store, err := results.NewManager(t.TempDir())
	require.NoError(t, err)
	stale := results.NewJob("a.pdf", "en", "de")
	stale.Status = results.StatusRunning
	require.NoError(t, store.Save(stale))

	s := New(&fakeRunner{}, store, Config{})
	t.Cleanup(s.Close)

	job, err := store.Load(stale.ID)
	require.NoError(t, err)
	assert.Equal(t, results.StatusError, job.Status)
	assert.NotEmpty(t, job.Error)
}

func TestDownloadName(t *testing.T) {
	assert.Equal(t, "paper_zh.pdf", downloadName(&results.Job{SourceName: "paper.pdf", TargetLang: "zh"}))
	assert.Equal(t, "document_en.pdf", downloadName(&results.Job{SourceName: ".pdf", TargetLang: "en"}))
}

func TestSubmit_Timeout(t *testing.T) {
	runner := &fakeRunner{}
	s, _ := newTestServer(t, runner)

	rec := upload(t, s.Handler(), "a.pdf", pdfBytes, map[string]string{"target_lang": "de", "timeout": "90s"})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	s.Wait()
	assert.Equal(t, int64(90*time.Second), runner.timeout.Load())
}

func postText(h http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/translate/text", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestTranslateText(t *testing.T) {
	s, _ := newTestServer(t, &fakeRunner{})
	h := s.Handler()

	rec := postText(h, `{"text":"hello\nworld","target_lang":"German"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"success":true,"translated_text":"HELLO\nWORLD","source_lang":"en","target_lang":"de"}`, rec.Body.String())

	tests := []struct {
		name string
		body string
		code int
	}{
		{"missing text", `{"target_lang":"de"}`, http.StatusBadRequest},
		{"missing target", `{"text":"hi"}`, http.StatusBadRequest},
		{"not json", `text=hi`, http.StatusBadRequest},
		{"rejected", `{"text":"fail","target_lang":"de"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postText(h, tt.body)
			assert.Equal(t, tt.code, rec.Code)
			assert.Contains(t, rec.Body.String(), `"success":false`)
		})
	}
}
