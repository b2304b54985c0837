package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/campushq/placemate/internal/chat"
	"github.com/campushq/placemate/internal/embed"
	"github.com/campushq/placemate/internal/gateway"
	"github.com/campushq/placemate/internal/ingest"
	"github.com/campushq/placemate/internal/store"
	"github.com/campushq/placemate/internal/testutil"
)

// fakeChat records the last query and returns a canned reply or error.
type fakeChat struct {
	lastQuery chat.Query
	reply     *chat.Reply
	err       error
}

func (f *fakeChat) Answer(_ context.Context, q chat.Query) (*chat.Reply, error) {
	f.lastQuery = q
	if f.err != nil {
		return nil, f.err
	}
	if f.reply != nil {
		return f.reply, nil
	}
	return &chat.Reply{Answer: "ok", Citations: []chat.Citation{}}, nil
}

// fakeIngest records uploaded files and returns a fixed chunk count.
type fakeIngest struct {
	lastFiles []ingest.File
	lastActor ingest.Actor
	chunks    int
	err       error
}

// Files returns chunks alongside err so partial ingestion is observable.
func (f *fakeIngest) Files(_ context.Context, files []ingest.File, actor ingest.Actor) (int, error) {
	f.lastFiles = files
	f.lastActor = actor
	return f.chunks, f.err
}

type fakeCounter struct {
	count int
	err   error
}

func (f *fakeCounter) Count(context.Context) (int, error) {
	return f.count, f.err
}

// testServer builds a server around the given fakes with relaxed limits.
func testServer(t *testing.T, ch ChatService, ing Ingestor, cnt Counter) *Server {
	t.Helper()
	if ch == nil {
		ch = &fakeChat{}
	}
	if ing == nil {
		ing = &fakeIngest{}
	}
	if cnt == nil {
		cnt = &fakeCounter{}
	}
	srv, err := NewServer(ServerConfig{
		Logger:    testutil.NewLogger(),
		Chat:      ch,
		Ingest:    ing,
		Counter:   cnt,
		RateLimit: 1000,
		RateBurst: 1000,
		IsDev:     true,
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv
}

func TestNewServerValidation(t *testing.T) {
	if _, err := NewServer(ServerConfig{}); err == nil {
		t.Error("expected error for missing collaborators")
	}
}

func TestHealth(t *testing.T) {
	srv := testServer(t, nil, nil, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestReadyWithoutPool(t *testing.T) {
	srv := testServer(t, nil, nil, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestChatEndpoint(t *testing.T) {
	fc := &fakeChat{reply: &chat.Reply{
		Answer:    "The deadline is March 15.",
		Citations: []chat.Citation{{Index: 1, Filename: "policy.pdf", Score: 0.812}},
		TopScore:  0.812,
		Grounded:  true,
	}}
	srv := testServer(t, fc, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat",
		strings.NewReader(`{"message":"what is the deadline"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor-Id", "s1")
	req.Header.Set("X-Actor-Role", "student")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var reply chat.Reply
	if err := json.Unmarshal(rec.Body.Bytes(), &reply); err != nil {
		t.Fatalf("unmarshal reply: %v", err)
	}
	if reply.Answer != "The deadline is March 15." || !reply.Grounded {
		t.Errorf("reply = %+v", reply)
	}
	if len(reply.Citations) != 1 || reply.Citations[0].Filename != "policy.pdf" {
		t.Errorf("citations = %+v", reply.Citations)
	}

	// Identity headers must flow through to the query.
	if fc.lastQuery.ActorID != "s1" || fc.lastQuery.ActorRole != "student" {
		t.Errorf("actor = %s/%s, want s1/student", fc.lastQuery.ActorID, fc.lastQuery.ActorRole)
	}
}

// TestIdentityRejectsUnknownRole checks that an identified request with a
// role outside student/faculty/admin never reaches a handler.
func TestIdentityRejectsUnknownRole(t *testing.T) {
	fc := &fakeChat{}
	srv := testServer(t, fc, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat",
		strings.NewReader(`{"message":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor-Id", "u9")
	req.Header.Set("X-Actor-Role", "superuser")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "unknown_role") {
		t.Errorf("body = %s", rec.Body.String())
	}
	if fc.lastQuery.Message != "" {
		t.Error("chat service must not run for an unknown role")
	}
}

func TestChatInvalidBody(t *testing.T) {
	srv := testServer(t, nil, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "invalid_body") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestChatErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"empty message", chat.ErrEmptyMessage, http.StatusBadRequest, "invalid_message"},
		{"provider unavailable", fmt.Errorf("embedding: %w", embed.ErrProviderUnavailable), http.StatusServiceUnavailable, "provider_unavailable"},
		{"generation failed", fmt.Errorf("generating: %w", gateway.ErrGenerationFailed), http.StatusBadGateway, "generation_failed"},
		{"storage failed", fmt.Errorf("scanning: %w", store.ErrStorageFailed), http.StatusInternalServerError, "storage_failed"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testServer(t, &fakeChat{err: tt.err}, nil, nil)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{"message":"q"}`))
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if !strings.Contains(rec.Body.String(), tt.wantCode) {
				t.Errorf("body = %s, want code %s", rec.Body.String(), tt.wantCode)
			}
		})
	}
}

// multipartBody builds a multipart form with the given filename/content pairs
// under the "files" field.
func multipartBody(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	buf := new(bytes.Buffer)
	mw := multipart.NewWriter(buf)
	for name, content := range files {
		part, err := mw.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		if _, err := part.Write([]byte(content)); err != nil {
			t.Fatalf("writing part: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("closing writer: %v", err)
	}
	return buf, mw.FormDataContentType()
}

func uploadRequest(t *testing.T, files map[string]string, role string) *http.Request {
	t.Helper()
	body, contentType := multipartBody(t, files)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	if role != "" {
		req.Header.Set("X-Actor-Id", "u1")
		req.Header.Set("X-Actor-Role", role)
	}
	return req
}

func TestIngestRequiresAdmin(t *testing.T) {
	for _, role := range []string{"", "student", "faculty"} {
		t.Run("role "+role, func(t *testing.T) {
			fi := &fakeIngest{}
			srv := testServer(t, nil, fi, nil)

			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, uploadRequest(t, map[string]string{"a.txt": "hello"}, role))

			if rec.Code != http.StatusForbidden {
				t.Errorf("status = %d, want 403", rec.Code)
			}
			if fi.lastFiles != nil {
				t.Error("pipeline must not run for non-admin upload")
			}
		})
	}
}

func TestIngestUpload(t *testing.T) {
	fi := &fakeIngest{chunks: 7}
	srv := testServer(t, nil, fi, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, uploadRequest(t, map[string]string{
		"policy.txt": "placement policy text",
		"faq.md":     "frequently asked questions",
	}, "admin"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp ingestResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Chunks != 7 || resp.Files != 2 {
		t.Errorf("response = %+v, want chunks 7 files 2", resp)
	}
	if len(fi.lastFiles) != 2 {
		t.Errorf("pipeline saw %d files, want 2", len(fi.lastFiles))
	}
	if fi.lastActor.ID != "u1" || fi.lastActor.Role != "admin" {
		t.Errorf("actor = %+v", fi.lastActor)
	}
}

func TestIngestTooManyFiles(t *testing.T) {
	files := make(map[string]string, DefaultMaxUploadFiles+1)
	for i := 0; i <= DefaultMaxUploadFiles; i++ {
		files[fmt.Sprintf("f%d.txt", i)] = "x"
	}
	srv := testServer(t, nil, &fakeIngest{}, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, uploadRequest(t, files, "admin"))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "too_many_files") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestIngestNoFilesField(t *testing.T) {
	srv := testServer(t, nil, &fakeIngest{}, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, uploadRequest(t, map[string]string{}, "admin"))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "no_files") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestIngestProviderError(t *testing.T) {
	fi := &fakeIngest{err: fmt.Errorf("embedding chunk: %w", embed.ErrProviderUnavailable)}
	srv := testServer(t, nil, fi, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, uploadRequest(t, map[string]string{"a.txt": "hello"}, "admin"))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

// TestIngestPartialFailureReportsChunks checks that a mid-batch storage
// failure reports the chunks stored before it alongside the error.
func TestIngestPartialFailureReportsChunks(t *testing.T) {
	fi := &fakeIngest{chunks: 3, err: fmt.Errorf("storing chunk: %w", store.ErrStorageFailed)}
	srv := testServer(t, nil, fi, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, uploadRequest(t, map[string]string{"a.txt": "hello"}, "admin"))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}

	var body ingestErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Error.Code != "storage_failed" {
		t.Errorf("error code = %q, want storage_failed", body.Error.Code)
	}
	if body.Chunks != 3 {
		t.Errorf("chunks = %d, want 3", body.Chunks)
	}
}

func TestStats(t *testing.T) {
	srv := testServer(t, nil, nil, &fakeCounter{count: 42})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"chunks":42`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestRateLimit(t *testing.T) {
	srv, err := NewServer(ServerConfig{
		Logger:    testutil.NewLogger(),
		Chat:      &fakeChat{},
		Ingest:    &fakeIngest{},
		Counter:   &fakeCounter{},
		RateLimit: 0.001,
		RateBurst: 1,
		IsDev:     true,
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{"message":"q"}`))
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		return rec.Code
	}

	if code := send(); code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", code)
	}
	if code := send(); code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv := testServer(t, nil, nil, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q", got)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("missing X-Request-Id header")
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, err := NewServer(ServerConfig{
		Logger:      testutil.NewLogger(),
		Chat:        &fakeChat{},
		Ingest:      &fakeIngest{},
		Counter:     &fakeCounter{},
		CORSOrigins: []string{"http://localhost:5173"},
		RateLimit:   1000,
		RateBurst:   1000,
		IsDev:       true,
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/chat", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("Allow-Origin = %q", got)
	}

	// Unknown origins get no CORS headers.
	req = httptest.NewRequest(http.MethodOptions, "/api/v1/chat", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("unexpected CORS headers for unknown origin")
	}
}
