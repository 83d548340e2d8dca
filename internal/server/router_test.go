package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/citysafe/planning-backend/internal/handlers"
	"github.com/citysafe/planning-backend/internal/middleware"
	"github.com/citysafe/planning-backend/internal/platform/logger"
)

// A request without credentials reaches the auth middleware only when its
// method and path are registered, so 401-vs-404 tells routed endpoints from
// unrouted ones without touching any service.
func TestRouterPrioritizationRoutes(t *testing.T) {
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	r := NewRouter(RouterDeps{
		Healthcheck:    handlers.NewHealthcheckHandler(nil),
		Auth:           handlers.NewAuthHandler(nil),
		Problem:        handlers.NewProblemHandler(nil, nil),
		Cause:          handlers.NewCauseHandler(nil, nil),
		Initiative:     handlers.NewInitiativeHandler(nil, nil),
		Plan:           handlers.NewPlanHandler(nil),
		Lookup:         handlers.NewLookupHandler(nil),
		AuthMiddleware: middleware.NewAuthMiddleware(nil, log),
	})

	cases := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodPut, "/api/problems/prioritization", http.StatusUnauthorized},
		{http.MethodPut, "/api/causes/prioritization", http.StatusUnauthorized},
		{http.MethodGet, "/api/causes/prioritization/all", http.StatusUnauthorized},
		{http.MethodPut, "/api/initiatives/prioritization", http.StatusUnauthorized},
		{http.MethodGet, "/api/initiatives/prioritization/all", http.StatusUnauthorized},
		{http.MethodPost, "/api/problems/prioritization", http.StatusNotFound},
		{http.MethodPost, "/api/causes/prioritization", http.StatusNotFound},
		{http.MethodPost, "/api/initiatives/prioritization", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
			if w.Code != tc.want {
				t.Fatalf("got %d, want %d", w.Code, tc.want)
			}
		})
	}
}
