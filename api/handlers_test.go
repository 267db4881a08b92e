package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/chxlky/contract-kanban/internal/activity/activitytest"
	"github.com/chxlky/contract-kanban/internal/config"
	"github.com/chxlky/contract-kanban/internal/models"
	"github.com/chxlky/contract-kanban/internal/services"
	"github.com/chxlky/contract-kanban/internal/session"
	"github.com/chxlky/contract-kanban/internal/storage"
	"github.com/chxlky/contract-kanban/internal/storage/storagetest"
	"github.com/chxlky/contract-kanban/internal/testutil"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

type tickClock struct {
	mu sync.Mutex
	t  time.Time
}

// now advances a second per call so creation order is strict.
func (c *tickClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type testServer struct {
	router *gin.Engine
	db     *gorm.DB
	store  *storagetest.Memory
	events *activitytest.Capture
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	store := storagetest.NewMemory()
	events := &activitytest.Capture{}
	clock := &tickClock{t: time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)}

	h := &Handler{
		DB:         db,
		Cards:      services.NewCardService(db, log, events, services.CardOptions{Now: clock.now}),
		Uploads:    services.NewUploadService(db, store, log, events, services.UploadOptions{MaxSize: 1 << 20, AllowedTypes: config.DefaultAllowedTypes}),
		Contracts:  services.NewContractService(db, log, events, services.ContractOptions{}),
		Facilities: services.NewFacilityService(db, log, events),
		Users:      services.NewUserService(db, log, events, session.NewDBStore(db, 0), bcrypt.MinCost),
		Activities: services.NewActivityService(db),
		Cookie:     CookieConfig{Name: "sid", MaxAge: 4 * time.Hour},
		MaxUpload:  1 << 20,
	}
	router := gin.New()
	h.Register(router)
	return &testServer{router: router, db: db, store: store, events: events}
}

func (s *testServer) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) upload(t *testing.T, fields map[string]string, data []byte, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if data != nil {
		part, err := mw.CreateFormFile("file", "Planta Baixa.png")
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/uploads", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// login registers a user and returns its session cookie.
func (s *testServer) login(t *testing.T) *http.Cookie {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/users/registration/newUser", map[string]string{
		"username":      "fiscal@om.mil.br",
		"password":      "s3nha",
		"nameOfTheUser": "Fiscal",
		"cpf":           "000.000.000-00",
		"creaNumber":    "DF-1",
		"position":      "Fiscal",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/users/login", map[string]string{"username": "fiscal@om.mil.br", "password": "s3nha"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	for _, c := range w.Result().Cookies() {
		if c.Name == "sid" {
			return c
		}
	}
	t.Fatal("login did not set the session cookie")
	return nil
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestUploadWithoutContractID(t *testing.T) {
	s := newTestServer(t)
	cookie := s.login(t)

	w := s.upload(t, map[string]string{"description": "planta"}, pngHeader, cookie)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["erro"])
	assert.Equal(t, 0, s.store.Len(storage.Active))
}

func TestUploadRequiresSession(t *testing.T) {
	s := newTestServer(t)

	w := s.upload(t, map[string]string{"contractId": uuid.NewString()}, pngHeader)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, s.store.Len(storage.Active))
}

func TestUploadRejectsFileType(t *testing.T) {
	s := newTestServer(t)
	cookie := s.login(t)

	w := s.upload(t, map[string]string{"contractId": uuid.NewString()}, []byte("#!/bin/sh\necho hi\n"), cookie)
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	assert.Equal(t, 0, s.store.Len(storage.Active))
}

func TestUploadLifecycle(t *testing.T) {
	s := newTestServer(t)
	cookie := s.login(t)
	contractID := uuid.NewString()

	w := s.upload(t, map[string]string{"contractId": contractID, "description": "planta"}, pngHeader, cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var up models.Upload
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &up))
	assert.Equal(t, "planta-baixa.png", up.Name)
	assert.True(t, s.store.Has(storage.Active, up.Key))

	w = s.do(t, http.MethodGet, "/api/uploads/"+contractID+"/null", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	var listed []models.Upload
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	assert.Len(t, listed, 1)

	w = s.do(t, http.MethodPut, "/api/uploads/"+up.ID.String(), map[string]string{"description": "planta revisada"}, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "planta revisada", decode(t, w)["description"])

	w = s.do(t, http.MethodDelete, "/api/uploads/"+up.ID.String(), nil, cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var trashed struct {
		TrashRecord models.TrashUpload `json:"trashRecord"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &trashed))
	assert.Equal(t, up.ID, trashed.TrashRecord.OriginalUploadID)
	assert.False(t, s.store.Has(storage.Active, up.Key))
	assert.True(t, s.store.Has(storage.Trash, up.Key))

	w = s.do(t, http.MethodDelete, "/api/uploads/"+up.ID.String(), nil, cookie)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/uploads/trash/"+contractID+"/null", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	var trash []models.TrashUpload
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &trash))
	require.Len(t, trash, 1)

	w = s.do(t, http.MethodDelete, "/api/uploads/trash/"+trash[0].ID.String(), nil, cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 0, s.store.Len(storage.Active))
	assert.Equal(t, 0, s.store.Len(storage.Trash))

	w = s.do(t, http.MethodGet, "/api/uploads/"+up.ID.String(), nil, cookie)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCardsPagination(t *testing.T) {
	s := newTestServer(t)
	contractID := uuid.NewString()
	creator := uuid.NewString()

	for i := 1; i <= 8; i++ {
		w := s.do(t, http.MethodPost, "/api/cards", map[string]any{
			"title":        fmt.Sprintf("c%d", i),
			"contractId":   contractID,
			"lane":         "Tasks",
			"currentStage": "A fazer",
			"createdBy":    creator,
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w := s.do(t, http.MethodGet, "/api/cards?contractId="+contractID+"&page=2&limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success    bool          `json:"success"`
		Data       []models.Card `json:"data"`
		Pagination struct {
			TotalPages  int `json:"totalPages"`
			CurrentPage int `json:"currentPage"`
			TotalCards  int `json:"totalCards"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, 2, body.Pagination.TotalPages)
	assert.Equal(t, 2, body.Pagination.CurrentPage)
	assert.Equal(t, 8, body.Pagination.TotalCards)
	require.Len(t, body.Data, 3)
	assert.Equal(t, []string{"c3", "c2", "c1"}, []string{body.Data[0].Title, body.Data[1].Title, body.Data[2].Title})
}

func TestCardStageMove(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/cards", map[string]any{
		"title":        "Medição 01",
		"contractId":   uuid.NewString(),
		"lane":         "Medição",
		"currentStage": "A fazer",
		"createdBy":    uuid.NewString(),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Data models.Card `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = s.do(t, http.MethodPut, "/api/cards/"+created.Data.ID.String(), map[string]any{"currentStage": "Em análise"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated struct {
		Data models.Card `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	require.Len(t, updated.Data.History, 2)
	assert.Equal(t, "A fazer", updated.Data.History[0].Stage)
	assert.NotNil(t, updated.Data.History[0].ExitedAt)
	assert.Equal(t, "Em análise", updated.Data.History[1].Stage)
	assert.Nil(t, updated.Data.History[1].ExitedAt)

	w = s.do(t, http.MethodPut, "/api/cards/"+created.Data.ID.String(), map[string]any{"lane": "Tasks"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["success"])
	assert.NotEmpty(t, body["message"])

	w = s.do(t, http.MethodDelete, "/api/cards/"+created.Data.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodGet, "/api/cards/"+created.Data.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCardCreateValidationEnvelope(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/cards", map[string]any{"title": "sem raia"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "validation", body["error"])
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/users/auth", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = s.do(t, http.MethodGet, "/api/users/logout", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, "/api/users/login", map[string]string{"username": "ninguem", "password": "x"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	cookie := s.login(t)
	assert.True(t, cookie.HttpOnly)

	w = s.do(t, http.MethodGet, "/api/users/auth", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["status"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "fiscal@om.mil.br", user["username"])
	assert.NotContains(t, user, "passwordHash")

	w = s.do(t, http.MethodGet, "/api/users/is-auth", nil, cookie)
	assert.Equal(t, true, decode(t, w)["status"])

	w = s.do(t, http.MethodPost, "/api/users/update-password", map[string]string{"username": "fiscal@om.mil.br"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.do(t, http.MethodPost, "/api/users/update-password", map[string]string{
		"username": "fiscal@om.mil.br", "currentPassword": "errada", "newPassword": "nova",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/api/users/logout", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/users/is-auth", nil, cookie)
	assert.Equal(t, false, decode(t, w)["status"])

	assert.Contains(t, s.events.Actions(), models.ActionLoginFail)
	assert.Contains(t, s.events.Actions(), models.ActionLogout)
}

func TestActivitiesEnvelope(t *testing.T) {
	s := newTestServer(t)
	doc := uuid.New()
	for range 3 {
		require.NoError(t, s.db.Create(&models.Activity{
			Action:         models.ActionAccess,
			CollectionType: "Uploads",
			DocumentID:     &doc,
			Timestamp:      time.Now(),
		}).Error)
	}

	w := s.do(t, http.MethodGet, "/api/activities/all?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["erro"])
	assert.EqualValues(t, 2, body["quantidade"])
	assert.EqualValues(t, 1, body["pagina"])
	assert.EqualValues(t, 2, body["totalPaginas"])
	assert.EqualValues(t, 3, body["totalRegistros"])

	w = s.do(t, http.MethodGet, "/api/activities/not-an-id", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "documentId inválido", decode(t, w)["mensagem"])
}

func TestContractRoutes(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/contracts", map[string]any{
		"name":           "Reforma",
		"contractNumber": "01/2025",
		"startDate":      "2025-01-10",
		"value":          "1000.00",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var contract models.Contract
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &contract))

	w = s.do(t, http.MethodPost, "/api/contracts", map[string]any{
		"name":           "Reforma",
		"contractNumber": "01/2025",
		"startDate":      "2025-01-10",
		"value":          1000,
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPut, "/api/contracts/"+contract.ID.String(), map[string]any{"status": "Concluído"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Concluído", decode(t, w)["status"])

	w = s.do(t, http.MethodGet, "/api/contracts/"+contract.ID.String()+"/revisions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var revisions []models.ContractRevision
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &revisions))
	assert.Len(t, revisions, 1)

	w = s.do(t, http.MethodPost, "/api/contracts/"+contract.ID.String()+"/items/"+uuid.NewString()+"/measurement", map[string]any{"quantity": 2})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/contracts/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, true, decode(t, w)["erro"])
}

func TestFacilityRoutes(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/facilities", map[string]any{
		"name":      "Batalhão",
		"codom":     "1",
		"codug":     "2",
		"nickname":  "BTL",
		"geoAdress": "Brasília",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decode(t, w)["id"].(string)

	w = s.do(t, http.MethodGet, "/api/facilities", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodDelete, "/api/facilities/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Facility deletada com sucesso!", decode(t, w)["mensagem"])

	w = s.do(t, http.MethodGet, "/api/facilities/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
