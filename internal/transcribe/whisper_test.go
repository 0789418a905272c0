package transcribe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTestAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.wav")
	if err := os.WriteFile(path, []byte("RIFFfake"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestWhisperClientTranscribe(t *testing.T) {
	var gotModel, gotLang, gotFormat string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		gotModel = r.FormValue("model")
		gotLang = r.FormValue("language")
		gotFormat = r.FormValue("response_format")
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("missing file field: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"text": "buongiorno a tutti",
			"language": "it",
			"duration": 2.5,
			"words": [{"word": "buongiorno", "start": 0.0, "end": 0.8}]
		}`))
	}))
	defer srv.Close()

	wc := NewWhisperClient(srv.URL, "whispy/whisper_italian", 5*time.Second)
	res, err := wc.Transcribe(context.Background(), writeTestAudio(t), Options{Language: "it"})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if res.Text != "buongiorno a tutti" {
		t.Errorf("Text = %q", res.Text)
	}
	if res.Language != "it" {
		t.Errorf("Language = %q, want it", res.Language)
	}
	if res.Duration != 2.5 {
		t.Errorf("Duration = %f, want 2.5", res.Duration)
	}
	if len(res.Words) != 1 || res.Words[0].Word != "buongiorno" {
		t.Errorf("Words = %+v", res.Words)
	}

	if gotModel != "whispy/whisper_italian" {
		t.Errorf("model field = %q", gotModel)
	}
	if gotLang != "it" {
		t.Errorf("language field = %q", gotLang)
	}
	if gotFormat != "verbose_json" {
		t.Errorf("response_format field = %q", gotFormat)
	}
}

func TestWhisperClientOptionalFields(t *testing.T) {
	var form map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseMultipartForm(1 << 20)
		form = r.MultipartForm.Value
		w.Write([]byte(`{"text": "ok"}`))
	}))
	defer srv.Close()

	wc := NewWhisperClient(srv.URL, "m", 5*time.Second)
	_, err := wc.Transcribe(context.Background(), writeTestAudio(t), Options{
		BeamSize:  5,
		VadFilter: true,
		Prompt:    "radio chatter",
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if got := form["beam_size"]; len(got) != 1 || got[0] != "5" {
		t.Errorf("beam_size = %v", got)
	}
	if got := form["vad_filter"]; len(got) != 1 || got[0] != "true" {
		t.Errorf("vad_filter = %v", got)
	}
	if got := form["prompt"]; len(got) != 1 || got[0] != "radio chatter" {
		t.Errorf("prompt = %v", got)
	}
}

func TestWhisperClientServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	wc := NewWhisperClient(srv.URL, "m", 5*time.Second)
	_, err := wc.Transcribe(context.Background(), writeTestAudio(t), Options{})
	if err == nil {
		t.Fatal("expected error on 500 response")
	}
}

func TestWhisperClientMissingFile(t *testing.T) {
	wc := NewWhisperClient("http://localhost:1", "m", time.Second)
	_, err := wc.Transcribe(context.Background(), "/nonexistent/audio.wav", Options{})
	if err == nil {
		t.Fatal("expected error for missing audio file")
	}
}
