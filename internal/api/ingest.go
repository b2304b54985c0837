package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/campushq/placemate/internal/ingest"
	"github.com/campushq/placemate/internal/telemetry"
)

// Upload limits enforced before the pipeline runs.
const (
	DefaultMaxUploadFiles = 10
	DefaultMaxUploadBytes = 20 << 20 // per file
)

// multipartMemoryBytes is how much of the form is held in memory before
// spilling to temp files.
const multipartMemoryBytes = 32 << 20

// Ingestor runs uploaded files through the ingestion pipeline.
// Implemented by ingest.Pipeline.
type Ingestor interface {
	Files(ctx context.Context, files []ingest.File, actor ingest.Actor) (int, error)
}

// ingestHandler serves POST /api/v1/documents. Admin only.
type ingestHandler struct {
	pipeline Ingestor
	maxFiles int
	maxBytes int64
	emitter  telemetry.Emitter
	logger   *slog.Logger
}

// ingestResponse reports how many chunks were stored across how many files.
type ingestResponse struct {
	Chunks int `json:"chunks"`
	Files  int `json:"files"`
}

// ingestErrorBody is the error envelope plus the chunks stored before the
// failure. Ingestion is not transactional, so partial progress is reported
// rather than hidden.
type ingestErrorBody struct {
	errorBody
	Chunks int `json:"chunks"`
}

func (h *ingestHandler) upload(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok || actor.Role != "admin" {
		WriteError(w, http.StatusForbidden, "forbidden", "document upload requires the admin role", h.logger)
		return
	}

	// Whole-request bound: all files plus form overhead.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes*int64(h.maxFiles)+multipartMemoryBytes)

	if err := r.ParseMultipartForm(multipartMemoryBytes); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			WriteError(w, http.StatusRequestEntityTooLarge, "body_too_large", "upload too large", h.logger)
			return
		}
		WriteError(w, http.StatusBadRequest, "invalid_multipart", "invalid multipart form", h.logger)
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			h.logger.Warn("removing multipart temp files", "error", err)
		}
	}()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		WriteError(w, http.StatusBadRequest, "no_files", `multipart field "files" is required`, h.logger)
		return
	}
	if len(headers) > h.maxFiles {
		WriteError(w, http.StatusBadRequest, "too_many_files",
			fmt.Sprintf("at most %d files per upload", h.maxFiles), h.logger)
		return
	}

	files := make([]ingest.File, 0, len(headers))
	for _, fh := range headers {
		if fh.Size > h.maxBytes {
			WriteError(w, http.StatusBadRequest, "file_too_large",
				fmt.Sprintf("%s exceeds the %d byte limit", fh.Filename, h.maxBytes), h.logger)
			return
		}

		f, err := fh.Open()
		if err != nil {
			WriteError(w, http.StatusBadRequest, "unreadable_file",
				fmt.Sprintf("cannot open %s", fh.Filename), h.logger)
			return
		}
		data, err := io.ReadAll(f)
		closeErr := f.Close()
		if err != nil || closeErr != nil {
			WriteError(w, http.StatusBadRequest, "unreadable_file",
				fmt.Sprintf("cannot read %s", fh.Filename), h.logger)
			return
		}

		files = append(files, ingest.File{
			Name:     fh.Filename,
			MIMEType: fh.Header.Get("Content-Type"),
			Size:     fh.Size,
			Data:     data,
		})
	}

	count, err := h.pipeline.Files(r.Context(), files, ingest.Actor{ID: actor.ID, Role: actor.Role})
	if err != nil {
		// Chunks stored before the failure remain stored; tell the caller
		// how many.
		status, code, message := domainStatus(err)
		h.logger.Error("ingestion failed", "error", err, "chunks_stored", count)

		var body ingestErrorBody
		body.Error.Code = code
		body.Error.Message = message
		body.Chunks = count
		WriteJSON(w, status, body)
		return
	}

	h.emitter.Emit(r.Context(), telemetry.Event{
		Name:      telemetry.EventIngestComplete,
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		Fields:    map[string]any{"files": len(files), "chunks": count},
	})
	WriteJSON(w, http.StatusOK, ingestResponse{Chunks: count, Files: len(files)})
}
