package controllers

import (
	"log/slog"
	"net/http"

	"github.com/RealZimboGuy/onboardflow/internal/engine"
	"github.com/RealZimboGuy/onboardflow/internal/util"
	"github.com/RealZimboGuy/onboardflow/pkg/onboardflow/domain"
)

type ActionsController struct {
	AuthController
	CaseActionRepo engine.CaseActionRepo
}

func NewActionsController(caseActionRepo engine.CaseActionRepo, userRepo engine.UserRepo) *ActionsController {
	return &ActionsController{CaseActionRepo: caseActionRepo, AuthController: AuthController{
		UserRepo: userRepo,
	}}
}

func (c *ActionsController) handleGetActionsForCase(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, "invalid id")
		return
	}

	results, err := c.CaseActionRepo.FindAllByCaseID(id)
	if err != nil {
		slog.Error("Failed to load case actions", "case_id", id, "error", err)
		util.WriteJSONError(w, http.StatusInternalServerError, "failed to load actions")
		return
	}
	if results == nil {
		results = &[]domain.CaseAction{}
	}
	util.WriteJSONResponse(w, http.StatusOK, results)
}
