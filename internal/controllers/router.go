package controllers

import (
	"net/http"

	"github.com/RealZimboGuy/onboardflow/internal/engine"
)

// RegisterRoutes wires the HTTP routes for this controller.
func (c *CasesController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/cases", c.RequireAuth(c.handleCreateManualCase))
	mux.HandleFunc("POST /api/cases/upload", c.RequireAuth(c.handleUploadCase))
	mux.HandleFunc("GET /api/cases/search", c.RequireAuth(c.handleSearchCases))
	mux.HandleFunc("GET /api/cases/overview", c.RequireAuth(c.handleOverview))
	mux.HandleFunc("GET /api/external-cases/{externalId}", c.RequireAuth(c.handleGetCaseByExternalId))
	mux.HandleFunc("GET /api/cases/{id}", c.RequireAuth(c.handleGetCaseById))
	mux.HandleFunc("POST /api/cases/{id}/step", c.RequireAuth(c.handleStep))
	mux.HandleFunc("GET /api/cases/{id}/review", c.RequireAuth(c.handleGetReview))
	mux.HandleFunc("POST /api/cases/{id}/review", c.RequireAuth(c.handleReview))
	mux.HandleFunc("POST /api/cases/{id}/document", c.RequireAuth(c.handleResubmitDocument))
}
func (c *ActionsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/actions/byCaseId/{id}", c.RequireAuth(c.handleGetActionsForCase))
}
func (c *UsersController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/users", c.RequireAuth(c.handleGetUsers))
	mux.HandleFunc("POST /api/users", c.RequireAuth(c.handleCreateUser))
	mux.HandleFunc("GET /api/users/{id}", c.RequireAuth(c.handleGetUserById))
	mux.HandleFunc("DELETE /api/users/{id}", c.RequireAuth(c.handleDeleteUser))
}

// NewRouter builds a mux with every API route registered.
func NewRouter(manager *engine.CaseManager, userRepo engine.UserRepo, uploadDir string) *http.ServeMux {
	mux := http.NewServeMux()
	NewBaseController(userRepo).RegisterRoutes(mux)
	NewCasesController(manager, userRepo, uploadDir).RegisterRoutes(mux)
	NewActionsController(manager.CaseActionRepo, userRepo).RegisterRoutes(mux)
	NewUsersController(userRepo).RegisterRoutes(mux)
	return mux
}
