package transcribe

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestTranscribe(t *testing.T) {
	var gotModel, gotFilename, gotAudio string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotModel = r.FormValue("model")
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		defer file.Close()
		gotFilename = header.Filename
		data, _ := io.ReadAll(file)
		gotAudio = string(data)
		w.Write([]byte(`{"text":"hello from audio"}`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "sk-test", Options{})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	text, err := client.Transcribe(context.Background(), strings.NewReader("fake audio bytes"), "note.webm")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if text != "hello from audio" {
		t.Fatalf("text = %q", text)
	}
	if gotModel != "whisper-1" {
		t.Fatalf("model = %q", gotModel)
	}
	if gotFilename != "note.webm" {
		t.Fatalf("filename = %q", gotFilename)
	}
	if gotAudio != "fake audio bytes" {
		t.Fatalf("audio = %q", gotAudio)
	}
}

func TestTranscribeUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"unsupported format"}}`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "sk-test", Options{})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	_, err = client.Transcribe(context.Background(), strings.NewReader("x"), "")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "status=400") {
		t.Fatalf("error %q should carry status", err)
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient("", "sk-test", Options{}); err == nil {
		t.Fatal("expected error for empty api base")
	}
	if _, err := NewClient("https://api.openai.com/v1", " ", Options{}); err == nil {
		t.Fatal("expected error for empty api key")
	}
}
