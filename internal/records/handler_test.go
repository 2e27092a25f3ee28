package records

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/trainrec/trainrec/internal/shared"
)

func testRouter() chi.Router {
	r := chi.NewRouter()
	NewHandler(NewService(nil), slog.Default()).MountRoutes(r)
	return r
}

func TestCreateRequiresActingUser(t *testing.T) {
	router := testRouter()

	req := httptest.NewRequest(http.MethodPost, "/records", strings.NewReader(`{"title":"Safety"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateRejectsBadPayload(t *testing.T) {
	router := testRouter()

	req := httptest.NewRequest(http.MethodPost, "/records", strings.NewReader(`{not json`))
	req = req.WithContext(shared.ContextWithUserID(req.Context(), 42))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateRejectsMissingTitle(t *testing.T) {
	router := testRouter()

	req := httptest.NewRequest(http.MethodPost, "/records", strings.NewReader(`{"summary":"no title"}`))
	req = req.WithContext(shared.ContextWithUserID(req.Context(), 42))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetRejectsBadID(t *testing.T) {
	router := testRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/records/abc", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
