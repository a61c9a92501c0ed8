package upload_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"guessrank/internal/services"
	"guessrank/internal/testsupport"
	"guessrank/internal/upload"
)

func TestDisabledWithoutEndpoint(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	u := upload.New(cfg)
	if u.Enabled() {
		t.Fatal("expected disabled uploader")
	}
	if _, err := u.Upload(context.Background(), "x"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestUploadPostsMultipartAndParsesJSON(t *testing.T) {
	var gotName, gotAuth string
	var gotSize int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		file, header, err := r.FormFile("clip")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		gotName, gotSize = header.Filename, len(data)
		_, _ = w.Write([]byte(`{"url":"https://files.example/abc.mp4"}`))
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Upload.Endpoint = srv.URL
	cfg.Upload.FieldName = "clip"
	cfg.Upload.Token = "secret"
	path := filepath.Join(t.TempDir(), "out.mp4")
	testsupport.WriteFile(t, path, 2048)

	link, err := upload.New(cfg).Upload(context.Background(), path)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if link != "https://files.example/abc.mp4" {
		t.Fatalf("unexpected link %q", link)
	}
	if gotName != "out.mp4" || gotSize != 2048 || gotAuth != "Bearer secret" {
		t.Fatalf("unexpected request name=%q size=%d auth=%q", gotName, gotSize, gotAuth)
	}
}

func TestUploadPlainTextAndErrors(t *testing.T) {
	status := http.StatusOK
	reply := "https://files.example/plain.mp4\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Upload.Endpoint = srv.URL
	path := filepath.Join(t.TempDir(), "out.mp4")
	testsupport.WriteFile(t, path, 10)
	u := upload.New(cfg)

	link, err := u.Upload(context.Background(), path)
	if err != nil || link != "https://files.example/plain.mp4" {
		t.Fatalf("unexpected result %q (%v)", link, err)
	}

	reply = "not a url"
	if _, err := u.Upload(context.Background(), path); !errors.Is(err, services.ErrExternal) {
		t.Fatalf("expected external error for garbage response, got %v", err)
	}

	status, reply = http.StatusBadGateway, "down"
	if _, err := u.Upload(context.Background(), path); !errors.Is(err, services.ErrExternal) {
		t.Fatalf("expected external error for 502, got %v", err)
	}
}
