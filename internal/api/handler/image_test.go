package handler

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/iconidentify/toolkit/internal/domain"
)

func multipartBody(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		fw, err := mw.CreateFormFile(field, filename)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		fw.Write(data)
	} else {
		mw.WriteField("other", "value")
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestImageHandler_RemoveBackground_Success(t *testing.T) {
	remover := &mockRemover{out: []byte("\x89PNG fake")}
	h := NewImageHandler(remover, 1<<20, testLogger())

	body, ct := multipartBody(t, "image", "cat.jpg", []byte("jpeg bytes"))
	req := httptest.NewRequest(http.MethodPost, "/remove-bg", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()

	h.RemoveBackground(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if got := w.Header().Get("Content-Type"); got != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", got)
	}
	if w.Body.String() != "\x89PNG fake" {
		t.Errorf("body = %q", w.Body.String())
	}
	if string(remover.got) != "jpeg bytes" || remover.filename != "cat.jpg" {
		t.Errorf("service got %q as %q", remover.got, remover.filename)
	}
}

func TestImageHandler_RemoveBackground_NoFile(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T) *http.Request
	}{
		{
			name: "missing field",
			setup: func(t *testing.T) *http.Request {
				body, ct := multipartBody(t, "", "", nil)
				req := httptest.NewRequest(http.MethodPost, "/remove-bg", body)
				req.Header.Set("Content-Type", ct)
				return req
			},
		},
		{
			name: "wrong field",
			setup: func(t *testing.T) *http.Request {
				body, ct := multipartBody(t, "file", "cat.jpg", []byte("x"))
				req := httptest.NewRequest(http.MethodPost, "/remove-bg", body)
				req.Header.Set("Content-Type", ct)
				return req
			},
		},
		{
			name: "not multipart",
			setup: func(t *testing.T) *http.Request {
				req := httptest.NewRequest(http.MethodPost, "/remove-bg", strings.NewReader("{}"))
				req.Header.Set("Content-Type", "application/json")
				return req
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remover := &mockRemover{}
			h := NewImageHandler(remover, 1<<20, testLogger())

			w := httptest.NewRecorder()
			h.RemoveBackground(w, tt.setup(t))

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
			if !strings.Contains(w.Body.String(), "No image file provided") {
				t.Errorf("body = %s", w.Body.String())
			}
		})
	}
}

func TestImageHandler_RemoveBackground_TooLarge(t *testing.T) {
	h := NewImageHandler(&mockRemover{}, 1024, testLogger())

	body, ct := multipartBody(t, "image", "big.png", bytes.Repeat([]byte("x"), 4096))
	req := httptest.NewRequest(http.MethodPost, "/remove-bg", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()

	h.RemoveBackground(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want %d", w.Code, http.StatusRequestEntityTooLarge)
	}
}

func TestImageHandler_RemoveBackground_Errors(t *testing.T) {
	tests := []struct {
		name string
		kind error
		want int
	}{
		{"model loading", domain.ErrUpstreamUnavailable, http.StatusServiceUnavailable},
		{"processing", domain.ErrProcessingFailed, http.StatusInternalServerError},
		{"empty", domain.ErrInvalidRequest, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remover := &mockRemover{err: domain.NewJobError("", "remove background", tt.kind, errors.New("x"))}
			h := NewImageHandler(remover, 1<<20, testLogger())

			body, ct := multipartBody(t, "image", "cat.jpg", []byte("jpeg"))
			req := httptest.NewRequest(http.MethodPost, "/remove-bg", body)
			req.Header.Set("Content-Type", ct)
			w := httptest.NewRecorder()

			h.RemoveBackground(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}
