package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/inspiralpatterns/fritz-speech-to-text/internal/transcribe"
)

type fakePool struct {
	jobs []transcribe.Job
	full bool
}

func (f *fakePool) Enqueue(j transcribe.Job) bool {
	if f.full {
		return false
	}
	f.jobs = append(f.jobs, j)
	return true
}

type fakeArchive struct {
	saved map[string][]byte
	dir   string
	fail  bool
}

func newFakeArchive(dir string) *fakeArchive {
	return &fakeArchive{saved: make(map[string][]byte), dir: dir}
}

func (f *fakeArchive) Save(_ context.Context, key string, data []byte, _ string) error {
	if f.fail {
		return context.DeadlineExceeded
	}
	f.saved[key] = data
	return nil
}

func (f *fakeArchive) LocalPath(key string) string {
	if _, ok := f.saved[key]; !ok {
		return ""
	}
	return filepath.Join(f.dir, key)
}

func multipartBody(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write(data)
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestUpload_Accepted(t *testing.T) {
	pool := &fakePool{}
	ar := newFakeArchive(t.TempDir())
	h := NewUploadHandler(pool, ar, zerolog.Nop())

	body, ct := multipartBody(t, "file", "clip.wav", []byte("RIFFdata"))
	req := httptest.NewRequest("POST", "/api/v1/transcribe", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.Upload(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body.String())
	}

	var resp UploadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.JobID == "" {
		t.Error("empty job_id")
	}
	if resp.Status != "queued" {
		t.Errorf("status = %q, want queued", resp.Status)
	}
	if !strings.HasPrefix(resp.AudioKey, "upload/") {
		t.Errorf("audio key %q not under upload/", resp.AudioKey)
	}
	if !strings.HasSuffix(resp.AudioKey, "clip.wav") {
		t.Errorf("audio key %q does not keep the filename", resp.AudioKey)
	}

	if len(pool.jobs) != 1 {
		t.Fatalf("enqueued %d jobs, want 1", len(pool.jobs))
	}
	job := pool.jobs[0]
	if job.Source != "upload" {
		t.Errorf("Source = %q, want upload", job.Source)
	}
	if job.AudioKey != resp.AudioKey {
		t.Errorf("AudioKey = %q, want %q", job.AudioKey, resp.AudioKey)
	}
	if job.AudioPath == "" {
		t.Error("empty AudioPath")
	}

	if _, ok := ar.saved[resp.AudioKey]; !ok {
		t.Error("audio not archived")
	}
}

func TestUpload_MissingFile(t *testing.T) {
	h := NewUploadHandler(&fakePool{}, newFakeArchive(t.TempDir()), zerolog.Nop())

	body, ct := multipartBody(t, "wrong_field", "clip.wav", []byte("data"))
	req := httptest.NewRequest("POST", "/api/v1/transcribe", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.Upload(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestUpload_EmptyFile(t *testing.T) {
	h := NewUploadHandler(&fakePool{}, newFakeArchive(t.TempDir()), zerolog.Nop())

	body, ct := multipartBody(t, "file", "clip.wav", nil)
	req := httptest.NewRequest("POST", "/api/v1/transcribe", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.Upload(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestUpload_QueueFull(t *testing.T) {
	pool := &fakePool{full: true}
	h := NewUploadHandler(pool, newFakeArchive(t.TempDir()), zerolog.Nop())

	body, ct := multipartBody(t, "file", "clip.wav", []byte("data"))
	req := httptest.NewRequest("POST", "/api/v1/transcribe", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.Upload(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestUpload_ArchiveFailure(t *testing.T) {
	ar := newFakeArchive(t.TempDir())
	ar.fail = true
	h := NewUploadHandler(&fakePool{}, ar, zerolog.Nop())

	body, ct := multipartBody(t, "file", "clip.wav", []byte("data"))
	req := httptest.NewRequest("POST", "/api/v1/transcribe", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.Upload(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"clip.wav", "clip.wav"},
		{"../../etc/passwd", "passwd"},
		{"my recording (1).mp3", "my_recording__1_.mp3"},
		{"", "audio"},
		{"..", "audio"},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
