package upstream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/anime-shed/plant-classifier-go/pkg/models"
)

var testImage = &models.Image{
	Name:        "leaf.png",
	ContentType: "image/png",
	Data:        []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A},
}

func TestPostMultipart_StatusHandling(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		expectError   bool
		errorContains string
	}{
		{name: "200 OK", status: 200},
		{name: "201 Created", status: 201},
		{name: "204 No Content", status: 204},
		{name: "400 client error", status: 400, expectError: true, errorContains: "upstream status code 400"},
		{name: "500 server error", status: 500, expectError: true, errorContains: "upstream status code 500"},
		{name: "503 unavailable", status: 503, expectError: true, errorContains: "upstream status code 503"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requestCount := 0
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				requestCount++
				w.WriteHeader(tt.status)
				if tt.status != http.StatusNoContent {
					w.Write([]byte("status body"))
				}
			}))
			defer server.Close()

			client := NewClient(Options{Timeout: 5 * time.Second})
			resp, err := client.PostMultipart(context.Background(), server.URL, "file", testImage)

			// Never retried
			if requestCount != 1 {
				t.Errorf("Expected exactly 1 request, got %d", requestCount)
			}

			if tt.expectError {
				if err == nil {
					t.Fatal("Expected error, but got none")
				}
				if !strings.Contains(err.Error(), tt.errorContains) {
					t.Errorf("Expected error to contain %q, got: %s", tt.errorContains, err.Error())
				}
				var statusErr *StatusError
				if !errors.As(err, &statusErr) || statusErr.StatusCode != tt.status {
					t.Errorf("Expected *StatusError with %d, got %v", tt.status, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("Expected no error, got: %s", err.Error())
			}
			resp.Body.Close()
		})
	}
}

func TestPostMultipart_NetworkError(t *testing.T) {
	requestCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount++
		hj, ok := w.(http.Hijacker)
		if ok {
			conn, _, _ := hj.Hijack()
			conn.Close()
		}
	}))
	defer server.Close()

	client := NewClient(Options{Timeout: 5 * time.Second})
	_, err := client.PostMultipart(context.Background(), server.URL, "file", testImage)
	if err == nil {
		t.Fatal("Expected network error")
	}
	if requestCount != 1 {
		t.Errorf("Expected a single attempt, got %d", requestCount)
	}
}

func TestPostMultipart_Fields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("Failed to parse multipart: %v", err)
			return
		}
		if got := r.FormValue("prediction"); got != "Tomato_Blight" {
			t.Errorf("Expected prediction field, got %q", got)
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("Expected file part: %v", err)
			return
		}
		defer file.Close()
		if header.Filename != "leaf.png" {
			t.Errorf("Expected filename leaf.png, got %s", header.Filename)
		}
		if ct := header.Header.Get("Content-Type"); ct != "image/png" {
			t.Errorf("Expected image/png part, got %s", ct)
		}
		data, _ := io.ReadAll(file)
		if string(data) != string(testImage.Data) {
			t.Error("File payload mismatch")
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(Options{})
	resp, err := client.PostMultipart(context.Background(), server.URL, "file", testImage,
		Field{Name: "prediction", Value: "Tomato_Blight"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	resp.Body.Close()
}

func TestPostMultipart_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := NewClient(Options{Timeout: 5 * time.Second})
	_, err := client.PostMultipart(ctx, server.URL, "file", testImage)
	if err == nil {
		t.Fatal("Expected error after context deadline")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestEncodeMultipart_DefaultsAndEscaping(t *testing.T) {
	img := &models.Image{Name: `we"ird.jpg`, Data: []byte("x")}
	body, contentType, err := EncodeMultipart("file", img)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.HasPrefix(contentType, "multipart/form-data; boundary=") {
		t.Errorf("Unexpected content type %s", contentType)
	}
	s := body.String()
	if !strings.Contains(s, `filename="we\"ird.jpg"`) {
		t.Errorf("Expected escaped filename in body, got %s", s)
	}
	if !strings.Contains(s, "Content-Type: application/octet-stream") {
		t.Error("Expected octet-stream fallback content type")
	}
}
