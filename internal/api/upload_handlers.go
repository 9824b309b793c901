package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/ignite/event-etl/internal/document"
	"github.com/ignite/event-etl/internal/pkg/httputil"
	"github.com/ignite/event-etl/internal/pkg/logger"
)

// UploadResponse summarizes one upload request.
type UploadResponse struct {
	Dispatched int            `json:"dispatched"`
	Skipped    int            `json:"skipped"`
	Files      []UploadedFile `json:"files"`
}

// UploadedFile is the outcome for one file of an upload.
type UploadedFile struct {
	Name   string `json:"name"`
	TaskID string `json:"task_id,omitempty"`
	Error  string `json:"error,omitempty"`
}

// handleUploadDocument saves every allowed file in the "document" field
// and dispatches a document task for each. Files with other extensions,
// and files that cannot be saved or dispatched, are skipped.
//
//	POST /upload_document (multipart/form-data)
func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.Error(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		httputil.BadRequest(w, "expected multipart form with document files")
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["document"]
	if len(headers) == 0 || headers[0].Filename == "" {
		httputil.BadRequest(w, "no files selected for upload")
		return
	}
	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		httputil.InternalError(w, fmt.Errorf("create upload dir: %w", err))
		return
	}

	resp := UploadResponse{Files: make([]UploadedFile, 0, len(headers))}
	for _, fh := range headers {
		out := s.acceptUpload(r, fh)
		if out.TaskID != "" {
			resp.Dispatched++
		} else {
			resp.Skipped++
		}
		resp.Files = append(resp.Files, out)
	}
	logger.Info("[API] upload handled", "dispatched", resp.Dispatched, "skipped", resp.Skipped)

	if wantsHTML(r) {
		redirectHome(w, r)
		return
	}
	if resp.Dispatched == 0 {
		httputil.JSON(w, http.StatusBadRequest, resp)
		return
	}
	httputil.Accepted(w, resp)
}

func (s *Server) acceptUpload(r *http.Request, fh *multipart.FileHeader) UploadedFile {
	out := UploadedFile{Name: fh.Filename}
	if !document.AllowedExtension(fh.Filename) {
		logger.Warn("[API] file type not allowed, skipped", "file", fh.Filename)
		out.Error = "file type not allowed"
		return out
	}

	name := uuid.NewString() + "_" + document.SanitizeFilename(fh.Filename)
	path := filepath.Join(s.cfg.UploadDir, name)
	if err := saveUpload(fh, path); err != nil {
		logger.Error("[API] could not save upload", "file", fh.Filename, "error", err)
		out.Error = "could not save file"
		return out
	}

	id, err := s.dispatcher.DispatchDocument(r.Context(), path, document.FileType(fh.Filename))
	if err != nil {
		logger.Error("[API] could not dispatch document", "file", fh.Filename, "error", err)
		os.Remove(path)
		out.Error = "could not dispatch file"
		return out
	}
	out.TaskID = id
	return out
}

func saveUpload(fh *multipart.FileHeader, path string) error {
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return err
	}
	return dst.Close()
}
