package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gogotex/gogotex/backend/autosave/internal/document/service"
	"github.com/stretchr/testify/require"
)

func TestDocumentHandler_CRUD(t *testing.T) {
	g := gin.New()
	svc := service.NewMemoryService()
	RegisterDocumentRoutes(g, svc)

	// create
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/documents", strings.NewReader(`{"title":"Hello","content":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	g.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)
	var cr map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cr))
	id := cr["id"]
	require.NotEmpty(t, id)

	// get
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/documents/"+id, nil)
	g.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"slug":"untitled"`)

	// patch
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPatch, "/api/documents/"+id, strings.NewReader(`{"content":"updated"}`))
	req.Header.Set("Content-Type", "application/json")
	g.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	// list
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	g.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	// delete
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/api/documents/"+id, nil)
	g.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)

	// gone
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/documents/"+id, nil)
	g.ServeHTTP(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestDocumentHandler_ListFilters(t *testing.T) {
	g := gin.New()
	svc := service.NewMemoryService()
	RegisterDocumentRoutes(g, svc)

	for _, body := range []string{
		`{"title":"post draft","type":"post"}`,
		`{"title":"page draft","type":"page"}`,
	} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/documents", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		g.ServeHTTP(w, req)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := httptest.NewRecorder()
	g.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/documents?status=draft&type=page", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var list []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	require.Equal(t, "page draft", list[0]["title"])
}
