package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dsmirnov/vaultkeeper/internal/common"
	"github.com/dsmirnov/vaultkeeper/internal/logging"
	"github.com/dsmirnov/vaultkeeper/internal/server/config"
	"github.com/dsmirnov/vaultkeeper/internal/server/models"
	"github.com/dsmirnov/vaultkeeper/internal/server/repositories/entries"
	"github.com/dsmirnov/vaultkeeper/internal/server/services"
)

// --- in-memory services for tests ---

type memUsers struct {
	byEmail  map[string]*models.User
	byToken  map[string]string // access token → user id
	refresh  map[string]string // refresh token → user id
	nextID   int
	nextTok  int
	passwrds map[string]string
}

func newMemUsers() *memUsers {
	return &memUsers{
		byEmail:  map[string]*models.User{},
		byToken:  map[string]string{},
		refresh:  map[string]string{},
		passwrds: map[string]string{},
	}
}

func (m *memUsers) Register(ctx context.Context, email, password string) (*models.User, error) {
	if _, ok := m.byEmail[email]; ok {
		return nil, common.ErrEmailTaken
	}
	m.nextID++
	u := &models.User{ID: fmt.Sprintf("u%d", m.nextID), Email: email, CreatedAt: time.Now()}
	m.byEmail[email] = u
	m.passwrds[email] = password
	return u, nil
}

func (m *memUsers) Login(ctx context.Context, email, password string) (*services.TokenPair, error) {
	u, ok := m.byEmail[email]
	if !ok || m.passwrds[email] != password {
		return nil, common.ErrorUnauthorized
	}
	return m.issue(u.ID), nil
}

func (m *memUsers) RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error) {
	userID, ok := m.refresh[refreshToken]
	if !ok {
		return nil, common.ErrorNotFound
	}
	delete(m.refresh, refreshToken)
	return m.issue(userID), nil
}

func (m *memUsers) CurrentUser(ctx context.Context, accessToken string) (*models.User, error) {
	userID, err := m.VerifyAccessToken(accessToken)
	if err != nil {
		return nil, err
	}
	for _, u := range m.byEmail {
		if u.ID == userID {
			return u, nil
		}
	}
	return nil, common.ErrorUnauthorized
}

func (m *memUsers) VerifyAccessToken(accessToken string) (string, error) {
	if id, ok := m.byToken[accessToken]; ok {
		return id, nil
	}
	return "", common.ErrInvalidToken
}

func (m *memUsers) issue(userID string) *services.TokenPair {
	m.nextTok++
	access := fmt.Sprintf("access-%d", m.nextTok)
	refresh := fmt.Sprintf("refresh-%d", m.nextTok)
	m.byToken[access] = userID
	m.refresh[refresh] = userID
	return &services.TokenPair{AccessToken: access, RefreshToken: refresh}
}

type memVault struct {
	folders []*models.Folder
	entries []*models.VaultEntry
	blobs   map[string][]byte
	nextID  int

	uploadErr error
}

func newMemVault() *memVault {
	return &memVault{blobs: map[string][]byte{}}
}

func (m *memVault) CreateFolder(ctx context.Context, userID, folderName string) (*models.Folder, error) {
	m.nextID++
	f := &models.Folder{ID: fmt.Sprintf("f%d", m.nextID), FolderName: folderName, UserID: userID, CreatedAt: time.Now()}
	m.folders = append(m.folders, f)
	return f, nil
}

func (m *memVault) ListFolders(ctx context.Context, userID string) ([]*models.Folder, error) {
	var out []*models.Folder
	for i := len(m.folders) - 1; i >= 0; i-- {
		if m.folders[i].UserID == userID {
			out = append(out, m.folders[i])
		}
	}
	return out, nil
}

func (m *memVault) DeleteFolder(ctx context.Context, userID, folderID string) error {
	for i, f := range m.folders {
		if f.ID == folderID && f.UserID == userID {
			m.folders = append(m.folders[:i], m.folders[i+1:]...)
			for _, e := range m.entries {
				if e.FolderID != nil && *e.FolderID == folderID {
					e.FolderID = nil
				}
			}
			return nil
		}
	}
	return common.ErrorNotFound
}

func (m *memVault) ListEntries(ctx context.Context, userID string, folderID *string) ([]*models.VaultEntry, error) {
	var out []*models.VaultEntry
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if e.UserID != userID {
			continue
		}
		if folderID != nil && (e.FolderID == nil || *e.FolderID != *folderID) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *memVault) GetEntry(ctx context.Context, userID, id string) (*models.VaultEntry, error) {
	for _, e := range m.entries {
		if e.ID == id && e.UserID == userID {
			return e, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (m *memVault) CreateNote(ctx context.Context, userID string, p services.NoteParams) (*models.VaultEntry, error) {
	m.nextID++
	content := p.Content
	e := &models.VaultEntry{
		ID:       fmt.Sprintf("e%d", m.nextID),
		Title:    p.Title,
		Content:  &content,
		Category: p.Category,
		FolderID: p.FolderID,
		UserID:   userID,
	}
	m.entries = append(m.entries, e)
	return e, nil
}

func (m *memVault) UpdateEntry(ctx context.Context, userID, id string, upd entries.Update) (*models.VaultEntry, error) {
	e, err := m.GetEntry(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if upd.Title != nil {
		e.Title = *upd.Title
	}
	if upd.Content != nil {
		e.Content = upd.Content
	}
	if upd.Category != nil {
		e.Category = upd.Category
	}
	if upd.ClearCategory {
		e.Category = nil
	}
	if upd.FolderID != nil {
		e.FolderID = upd.FolderID
	}
	if upd.ClearFolderID {
		e.FolderID = nil
	}
	return e, nil
}

func (m *memVault) DeleteEntry(ctx context.Context, userID, id string) error {
	for i, e := range m.entries {
		if e.ID == id && e.UserID == userID {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return nil
		}
	}
	return common.ErrorNotFound
}

func (m *memVault) UploadFile(ctx context.Context, userID string, up services.FileUpload) (*models.VaultEntry, error) {
	if m.uploadErr != nil {
		return nil, m.uploadErr
	}
	m.nextID++
	key := fmt.Sprintf("%s/blob-%d", userID, m.nextID)
	m.blobs[key] = up.Data

	title := up.Title
	if title == "" {
		title = up.FileName
	}
	size := int64(len(up.Data))
	e := &models.VaultEntry{
		ID:       fmt.Sprintf("e%d", m.nextID),
		Title:    title,
		Category: up.Category,
		FolderID: up.FolderID,
		FileInfo: &models.FileInfo{
			FileName:    up.FileName,
			ContentType: up.ContentType,
			StoragePath: key,
			SignedURL:   "https://signed.example/" + key,
		},
		FileSize: &size,
		UserID:   userID,
	}
	m.entries = append(m.entries, e)
	return e, nil
}

func (m *memVault) DeleteFile(ctx context.Context, userID, storagePath, entryID string) error {
	if _, ok := m.blobs[storagePath]; !ok {
		return errors.New("blob missing")
	}
	delete(m.blobs, storagePath)
	return m.DeleteEntry(ctx, userID, entryID)
}

func (m *memVault) FileURL(ctx context.Context, userID, storagePath string) (string, error) {
	if _, ok := m.blobs[storagePath]; !ok {
		return "", errors.New("blob missing")
	}
	return "https://signed.example/" + storagePath, nil
}

// --- test helpers ---

func newTestServer() (*Server, *memUsers, *memVault) {
	users := newMemUsers()
	vault := newMemVault()
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	cfg := &config.Config{EndpointAddr: ":0"}
	return NewServer(users, vault, logger, cfg), users, vault
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var result map[string]any
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("decoding response: %v (body: %s)", err, w.Body.String())
	}
	return result
}

func loginUser(t *testing.T, handler http.Handler) string {
	t.Helper()
	w := doJSON(t, handler, "POST", "/v1/auth/register", map[string]any{
		"email": "a@example.com", "password": "longenough",
	}, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("register failed: %d %s", w.Code, w.Body.String())
	}
	w = doJSON(t, handler, "POST", "/v1/auth/login", map[string]any{
		"email": "a@example.com", "password": "longenough",
	}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", w.Code, w.Body.String())
	}
	return decodeBody(t, w)["access_token"].(string)
}

func uploadFile(t *testing.T, handler http.Handler, token, fileName string, data []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("creating form file: %v", err)
	}
	part.Write(data) //nolint:errcheck
	for k, v := range fields {
		mw.WriteField(k, v) //nolint:errcheck
	}
	mw.Close()

	req := httptest.NewRequest("POST", "/v1/files", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

// --- tests ---

func TestHealthEndpoint(t *testing.T) {
	srv, _, _ := newTestServer()
	w := doJSON(t, srv.BuildRouter(), "GET", "/v1/sys/health", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestRegisterValidation(t *testing.T) {
	srv, _, _ := newTestServer()
	handler := srv.BuildRouter()

	w := doJSON(t, handler, "POST", "/v1/auth/register", map[string]any{
		"email": "not-an-email", "password": "longenough",
	}, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad email: expected 400, got %d", w.Code)
	}

	w = doJSON(t, handler, "POST", "/v1/auth/register", map[string]any{
		"email": "a@example.com", "password": "short",
	}, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("short password: expected 400, got %d", w.Code)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	srv, _, _ := newTestServer()
	handler := srv.BuildRouter()

	body := map[string]any{"email": "a@example.com", "password": "longenough"}
	if w := doJSON(t, handler, "POST", "/v1/auth/register", body, ""); w.Code != http.StatusCreated {
		t.Fatalf("register failed: %d", w.Code)
	}
	if w := doJSON(t, handler, "POST", "/v1/auth/register", body, ""); w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", w.Code)
	}
}

func TestLoginAndMe(t *testing.T) {
	srv, _, _ := newTestServer()
	handler := srv.BuildRouter()
	token := loginUser(t, handler)

	w := doJSON(t, handler, "GET", "/v1/auth/me", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("me failed: %d %s", w.Code, w.Body.String())
	}
	if body := decodeBody(t, w); body["email"] != "a@example.com" {
		t.Errorf("wrong identity: %v", body)
	}
}

func TestRefreshRotation(t *testing.T) {
	srv, _, _ := newTestServer()
	handler := srv.BuildRouter()
	loginUser(t, handler)

	w := doJSON(t, handler, "POST", "/v1/auth/login", map[string]any{
		"email": "a@example.com", "password": "longenough",
	}, "")
	refresh := decodeBody(t, w)["refresh_token"].(string)

	w = doJSON(t, handler, "POST", "/v1/auth/refresh", map[string]any{"refresh_token": refresh}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("refresh failed: %d %s", w.Code, w.Body.String())
	}
	// old token is burnt
	w = doJSON(t, handler, "POST", "/v1/auth/refresh", map[string]any{"refresh_token": refresh}, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for reused refresh token, got %d", w.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	srv, _, _ := newTestServer()
	handler := srv.BuildRouter()

	for _, route := range []struct{ method, path string }{
		{"GET", "/v1/folders"},
		{"POST", "/v1/folders"},
		{"GET", "/v1/entries"},
		{"POST", "/v1/files"},
		{"GET", "/v1/auth/me"},
	} {
		w := doJSON(t, handler, route.method, route.path, nil, "")
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: expected 401, got %d", route.method, route.path, w.Code)
		}
	}

	w := doJSON(t, handler, "GET", "/v1/folders", nil, "bogus-token")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bogus token: expected 401, got %d", w.Code)
	}
}

func TestFolderLifecycle(t *testing.T) {
	srv, _, _ := newTestServer()
	handler := srv.BuildRouter()
	token := loginUser(t, handler)

	w := doJSON(t, handler, "POST", "/v1/folders", map[string]any{"folder_name": "taxes"}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("create failed: %d %s", w.Code, w.Body.String())
	}
	folderID := decodeBody(t, w)["id"].(string)

	w = doJSON(t, handler, "GET", "/v1/folders", nil, token)
	body := decodeBody(t, w)
	if n := len(body["folders"].([]any)); n != 1 {
		t.Fatalf("expected 1 folder, got %d", n)
	}

	req := httptest.NewRequest("DELETE", "/v1/folders/"+folderID, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete failed: %d", rec.Code)
	}

	req = httptest.NewRequest("DELETE", "/v1/folders/"+folderID, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete: expected 404, got %d", rec.Code)
	}
}

func TestFolderCreateValidation(t *testing.T) {
	srv, _, _ := newTestServer()
	handler := srv.BuildRouter()
	token := loginUser(t, handler)

	w := doJSON(t, handler, "POST", "/v1/folders", map[string]any{"folder_name": "   "}, token)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestNoteLifecycle(t *testing.T) {
	srv, _, _ := newTestServer()
	handler := srv.BuildRouter()
	token := loginUser(t, handler)

	w := doJSON(t, handler, "POST", "/v1/entries", map[string]any{
		"title": "groceries", "content": "milk, eggs",
	}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("create failed: %d %s", w.Code, w.Body.String())
	}
	id := decodeBody(t, w)["id"].(string)

	w = doJSON(t, handler, "PATCH", "/v1/entries/"+id, map[string]any{"title": "shopping"}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("patch failed: %d %s", w.Code, w.Body.String())
	}
	if body := decodeBody(t, w); body["title"] != "shopping" || body["content"] != "milk, eggs" {
		t.Errorf("partial update wrong: %v", body)
	}

	w = doJSON(t, handler, "PATCH", "/v1/entries/"+id, map[string]any{"folder_id": nil}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("null patch failed: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, handler, "DELETE", "/v1/entries/"+id, nil, token)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete failed: %d", w.Code)
	}
	w = doJSON(t, handler, "GET", "/v1/entries/"+id, nil, token)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", w.Code)
	}
}

func TestEntryListFolderFilter(t *testing.T) {
	srv, _, vault := newTestServer()
	handler := srv.BuildRouter()
	token := loginUser(t, handler)

	folderID := "f9"
	doJSON(t, handler, "POST", "/v1/entries", map[string]any{"title": "loose"}, token)
	doJSON(t, handler, "POST", "/v1/entries", map[string]any{"title": "filed", "folder_id": folderID}, token)
	if len(vault.entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(vault.entries))
	}

	w := doJSON(t, handler, "GET", "/v1/entries?folder_id="+folderID, nil, token)
	body := decodeBody(t, w)
	list := body["entries"].([]any)
	if len(list) != 1 {
		t.Fatalf("expected 1 filtered entry, got %d", len(list))
	}
	if list[0].(map[string]any)["title"] != "filed" {
		t.Errorf("wrong entry: %v", list[0])
	}
}

func TestFileUploadAndDelete(t *testing.T) {
	srv, _, vault := newTestServer()
	handler := srv.BuildRouter()
	token := loginUser(t, handler)

	w := uploadFile(t, handler, token, "notes.txt", bytes.Repeat([]byte("x"), 10240), nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload failed: %d %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["file_size"].(float64) != 10240 {
		t.Errorf("wrong file_size: %v", body["file_size"])
	}
	fileInfo := body["file_info"].(map[string]any)
	if fileInfo["fileName"] != "notes.txt" {
		t.Errorf("wrong fileName: %v", fileInfo)
	}
	id := body["id"].(string)

	w = doJSON(t, handler, "GET", "/v1/files/"+id+"/url", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("url failed: %d %s", w.Code, w.Body.String())
	}
	if url := decodeBody(t, w)["url"].(string); !strings.HasPrefix(url, "https://") {
		t.Errorf("unexpected url: %q", url)
	}

	w = doJSON(t, handler, "DELETE", "/v1/files/"+id, nil, token)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete failed: %d", w.Code)
	}
	if len(vault.blobs) != 0 {
		t.Error("blob not removed")
	}
	w = doJSON(t, handler, "GET", "/v1/entries/"+id, nil, token)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", w.Code)
	}
}

func TestFileUploadValidation(t *testing.T) {
	srv, _, _ := newTestServer()
	handler := srv.BuildRouter()
	token := loginUser(t, handler)

	w := uploadFile(t, handler, token, "empty.txt", nil, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty file: expected 400, got %d", w.Code)
	}

	req := httptest.NewRequest("POST", "/v1/files", strings.NewReader("not multipart"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("non-multipart: expected 400, got %d", rec.Code)
	}
}

func TestFileUploadBackendFailure(t *testing.T) {
	srv, _, vault := newTestServer()
	handler := srv.BuildRouter()
	token := loginUser(t, handler)
	vault.uploadErr = errors.New("bucket unreachable")

	w := uploadFile(t, handler, token, "notes.txt", []byte("x"), nil)
	if w.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", w.Code)
	}
	if len(vault.entries) != 0 {
		t.Error("no entry may exist after a failed upload")
	}
}

func TestFileDeleteOnNote(t *testing.T) {
	srv, _, _ := newTestServer()
	handler := srv.BuildRouter()
	token := loginUser(t, handler)

	w := doJSON(t, handler, "POST", "/v1/entries", map[string]any{"title": "note"}, token)
	id := decodeBody(t, w)["id"].(string)

	w = doJSON(t, handler, "DELETE", "/v1/files/"+id, nil, token)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for non-file entry, got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _, _ := newTestServer()
	w := doJSON(t, srv.BuildRouter(), "GET", "/metrics", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "vaultkeeper_requests_total") {
		t.Error("request counter missing from metrics output")
	}
}
