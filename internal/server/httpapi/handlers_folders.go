package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// FolderListHandler handles GET /v1/folders
func (s *Server) FolderListHandler(w http.ResponseWriter, r *http.Request) {
	folders, err := s.vault.ListFolders(r.Context(), userIDFromCtx(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"folders": folders})
}

// FolderCreateHandler handles POST /v1/folders
func (s *Server) FolderCreateHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FolderName string `json:"folder_name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.FolderName = strings.TrimSpace(req.FolderName)
	if req.FolderName == "" {
		writeError(w, http.StatusBadRequest, "folder_name is required")
		return
	}

	folder, err := s.vault.CreateFolder(r.Context(), userIDFromCtx(r.Context()), req.FolderName)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, folder)
}

// FolderDeleteHandler handles DELETE /v1/folders/{id}. Entries inside the
// folder are kept and moved to the root.
func (s *Server) FolderDeleteHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.vault.DeleteFolder(r.Context(), userIDFromCtx(r.Context()), id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
