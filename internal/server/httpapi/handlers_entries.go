package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dsmirnov/vaultkeeper/internal/server/repositories/entries"
	"github.com/dsmirnov/vaultkeeper/internal/server/services"
	"github.com/go-chi/chi/v5"
)

// EntryListHandler handles GET /v1/entries. An optional folder_id query
// parameter restricts the listing to one folder.
func (s *Server) EntryListHandler(w http.ResponseWriter, r *http.Request) {
	var folderID *string
	if v := r.URL.Query().Get("folder_id"); v != "" {
		folderID = &v
	}

	list, err := s.vault.ListEntries(r.Context(), userIDFromCtx(r.Context()), folderID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": list})
}

// EntryCreateHandler handles POST /v1/entries (text notes; files go through
// POST /v1/files).
func (s *Server) EntryCreateHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title    string  `json:"title"`
		Content  string  `json:"content"`
		Category *string `json:"category"`
		FolderID *string `json:"folder_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	entry, err := s.vault.CreateNote(r.Context(), userIDFromCtx(r.Context()), services.NoteParams{
		Title:    req.Title,
		Content:  req.Content,
		Category: req.Category,
		FolderID: req.FolderID,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// EntryGetHandler handles GET /v1/entries/{id}
func (s *Server) EntryGetHandler(w http.ResponseWriter, r *http.Request) {
	entry, err := s.vault.GetEntry(r.Context(), userIDFromCtx(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// EntryUpdateHandler handles PATCH /v1/entries/{id}. Only keys present in
// the body are touched; an explicit JSON null clears category or folder_id.
func (s *Server) EntryUpdateHandler(w http.ResponseWriter, r *http.Request) {
	var raw map[string]json.RawMessage
	if err := decodeJSON(r, &raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	upd, err := updateFromPatch(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entry, err := s.vault.UpdateEntry(r.Context(), userIDFromCtx(r.Context()), chi.URLParam(r, "id"), upd)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func updateFromPatch(raw map[string]json.RawMessage) (entries.Update, error) {
	var upd entries.Update

	stringField := func(key string) (*string, bool, error) {
		msg, ok := raw[key]
		if !ok {
			return nil, false, nil
		}
		if string(msg) == "null" {
			return nil, true, nil
		}
		var v string
		if err := json.Unmarshal(msg, &v); err != nil {
			return nil, false, errInvalidField(key)
		}
		return &v, false, nil
	}

	title, null, err := stringField("title")
	if err != nil {
		return upd, err
	}
	if null {
		return upd, errInvalidField("title")
	}
	upd.Title = title

	content, null, err := stringField("content")
	if err != nil {
		return upd, err
	}
	if null {
		return upd, errInvalidField("content")
	}
	upd.Content = content

	category, null, err := stringField("category")
	if err != nil {
		return upd, err
	}
	upd.Category = category
	upd.ClearCategory = null

	folderID, null, err := stringField("folder_id")
	if err != nil {
		return upd, err
	}
	upd.FolderID = folderID
	upd.ClearFolderID = null

	return upd, nil
}

type errInvalidField string

func (e errInvalidField) Error() string { return "invalid value for " + string(e) }

// EntryDeleteHandler handles DELETE /v1/entries/{id} (metadata only; files
// go through DELETE /v1/files/{id}).
func (s *Server) EntryDeleteHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.vault.DeleteEntry(r.Context(), userIDFromCtx(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
