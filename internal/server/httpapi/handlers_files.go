package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/dsmirnov/vaultkeeper/internal/common"
	"github.com/dsmirnov/vaultkeeper/internal/server/services"
	"github.com/go-chi/chi/v5"
)

// maxUploadBytes caps the multipart body size for POST /v1/files.
const maxUploadBytes = 32 << 20

// writeStorageError is writeServiceError with the default mapped to 502,
// for operations that talk to the object storage backend.
func writeStorageError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, common.ErrAuthenticationRequired),
		errors.Is(err, common.ErrorUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, common.ErrorNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		writeError(w, http.StatusBadGateway, "object storage unavailable")
	}
}

// FileUploadHandler handles POST /v1/files. The multipart body carries the
// blob in the "file" part plus optional "title", "category" and "folder_id"
// fields.
func (s *Server) FileUploadHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file part is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading file part")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "file is empty")
		return
	}

	up := services.FileUpload{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
		Title:       strings.TrimSpace(r.FormValue("title")),
	}
	if v := r.FormValue("category"); v != "" {
		up.Category = &v
	}
	if v := r.FormValue("folder_id"); v != "" {
		up.FolderID = &v
	}

	entry, err := s.vault.UploadFile(r.Context(), userIDFromCtx(r.Context()), up)
	if err != nil {
		writeStorageError(w, err)
		return
	}

	uploadsTotal.Inc()
	uploadBytesTotal.Add(float64(len(data)))
	writeJSON(w, http.StatusCreated, entry)
}

// FileDeleteHandler handles DELETE /v1/files/{id}: looks up the entry,
// removes the blob, then the metadata record.
func (s *Server) FileDeleteHandler(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromCtx(r.Context())
	id := chi.URLParam(r, "id")

	entry, err := s.vault.GetEntry(r.Context(), userID, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !entry.IsFile() {
		writeError(w, http.StatusBadRequest, "entry is not a file")
		return
	}

	if err := s.vault.DeleteFile(r.Context(), userID, entry.FileInfo.StoragePath, id); err != nil {
		writeStorageError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// FileURLHandler handles GET /v1/files/{id}/url: returns a fresh signed
// download URL for the entry's blob.
func (s *Server) FileURLHandler(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromCtx(r.Context())
	id := chi.URLParam(r, "id")

	entry, err := s.vault.GetEntry(r.Context(), userID, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !entry.IsFile() {
		writeError(w, http.StatusBadRequest, "entry is not a file")
		return
	}

	url, err := s.vault.FileURL(r.Context(), userID, entry.FileInfo.StoragePath)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"url": url})
}
