package ocr

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_Process(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/ocr" {
			t.Errorf("path = %s, want /v1/ocr", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Authorization = %s", auth)
		}
		png := base64.StdEncoding.EncodeToString([]byte{0x89, 0x50, 0x4e, 0x47})
		_, _ = w.Write([]byte(`{
			"n_pages": 2,
			"blocks": [{"page": 1, "text": "INVOICE"}],
			"pages": [
				{"text": "page one", "image": "` + png + `"},
				{"text": "page two", "image": "` + png + `"}
			]
		}`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "test-key"})
	result, err := c.Process(context.Background(), "invoice.pdf", []byte("%PDF-1.4"))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if result.NPages != 2 {
		t.Errorf("NPages = %d, want 2", result.NPages)
	}
	if len(result.PageTexts) != 2 || result.PageTexts[1] != "page two" {
		t.Errorf("PageTexts = %v", result.PageTexts)
	}
	if len(result.PageImages) != 2 {
		t.Errorf("PageImages len = %d, want 2", len(result.PageImages))
	}
	if result.Text() != "page one\fpage two" {
		t.Errorf("Text() = %q", result.Text())
	}
}

func TestClient_ProcessImageGaps(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		png := base64.StdEncoding.EncodeToString([]byte{0x89, 0x50})
		_, _ = w.Write([]byte(`{
			"n_pages": 3,
			"pages": [
				{"text": "one", "image": "` + png + `"},
				{"text": "two"},
				{"text": "three", "image": "` + png + `"}
			]
		}`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL})
	result, err := c.Process(context.Background(), "mixed.pdf", []byte("x"))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	// An imageless page keeps its slot so images stay page-aligned.
	if len(result.PageImages) != 3 {
		t.Fatalf("PageImages len = %d, want 3", len(result.PageImages))
	}
	if result.PageImages[1] != nil {
		t.Errorf("PageImages[1] = %v, want nil", result.PageImages[1])
	}
	if len(result.PageImages[0]) == 0 || len(result.PageImages[2]) == 0 {
		t.Error("pages 1 and 3 should keep their images")
	}
}

func TestClient_ProcessTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL})
	_, err := c.Process(context.Background(), "a.pdf", []byte("x"))
	if !errors.Is(err, ErrTransient) {
		t.Errorf("expected ErrTransient for 503, got %v", err)
	}
}

func TestClient_ProcessPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL})
	_, err := c.Process(context.Background(), "a.pdf", []byte("x"))
	if err == nil {
		t.Fatal("expected error for 400")
	}
	if errors.Is(err, ErrTransient) {
		t.Errorf("400 should be permanent, got %v", err)
	}
}

func TestIsPreText(t *testing.T) {
	cases := map[string]bool{
		"notes.txt":   true,
		"README.md":   true,
		"data.CSV":    true,
		"invoice.pdf": false,
		"scan.png":    false,
		"noext":       false,
	}
	for name, want := range cases {
		if got := IsPreText(name); got != want {
			t.Errorf("IsPreText(%s) = %v, want %v", name, got, want)
		}
	}
}
