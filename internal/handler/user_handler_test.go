package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func getWithURLParam(path, key, value string) *http.Request {
	r := httptest.NewRequest("GET", path, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestHandleGetUserByUsernameRejectsMalformedName(t *testing.T) {
	handler := HandleGetUserByUsername(&AppDeps{})

	for _, name := range []string{"", "Alice", "alice!", "ab"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, getWithURLParam("/api/users/username/"+name, "username", name))
		require.Equal(t, http.StatusBadRequest, rec.Code, "username %q", name)
	}
}
