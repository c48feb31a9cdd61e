package controllers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/RealZimboGuy/onboardflow/internal/engine"
	"github.com/RealZimboGuy/onboardflow/internal/util"
	"github.com/RealZimboGuy/onboardflow/pkg/onboardflow/domain"
	"github.com/RealZimboGuy/onboardflow/pkg/onboardflow/models"
)

const maxUploadBytes = 10 << 20

// CasesController holds dependencies for case HTTP endpoints.
type CasesController struct {
	AuthController
	Manager   *engine.CaseManager
	UploadDir string
}

func NewCasesController(manager *engine.CaseManager, userRepo engine.UserRepo, uploadDir string) *CasesController {
	return &CasesController{Manager: manager, UploadDir: uploadDir, AuthController: AuthController{
		UserRepo: userRepo,
	}}
}

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrCaseNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrInvalidIntake):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrGated),
		errors.Is(err, engine.ErrTerminal),
		errors.Is(err, engine.ErrCaseBusy),
		errors.Is(err, engine.ErrStoreBusy),
		errors.Is(err, engine.ErrStaleCase),
		errors.Is(err, engine.ErrNotUnderReview),
		errors.Is(err, engine.ErrNotAwaitingCustomer),
		errors.Is(err, engine.ErrNoRetryOrigin):
		return http.StatusConflict
	case errors.Is(err, engine.ErrJustificationRequired),
		errors.Is(err, engine.ErrDecisionNotOffered),
		errors.Is(err, engine.ErrNormalization),
		errors.Is(err, engine.ErrTransitionUnrecognized):
		return http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrWorkerInvocation),
		errors.Is(err, engine.ErrSendFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("Request failed", "error", err)
		util.WriteJSONError(w, status, "internal error")
		return
	}
	util.WriteJSONError(w, status, err.Error())
}

func pathID(r *http.Request) (int64, error) {
	idStr := r.PathValue("id")
	if idStr == "" {
		return 0, errors.New("id is required")
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return 0, errors.New("id is an integer")
	}
	return id, nil
}

func (c *CasesController) handleCreateManualCase(w http.ResponseWriter, r *http.Request) {
	req, err := util.DecodeJSONBody[models.ManualIntakeRequest](r)
	if err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	created, err := c.Manager.CreateManual(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	util.WriteJSONResponse(w, http.StatusCreated, models.CreateCaseResponse{ID: created.ID, ExternalID: created.ExternalID, Status: created.Status})
}

// handleUploadCase expects a multipart form with businessName and a document file.
func (c *CasesController) handleUploadCase(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	ref, err := c.saveUpload(r)
	if err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	created, err := c.Manager.CreateFromDocument(r.Context(), models.DocumentIntakeRequest{
		BusinessName: r.FormValue("businessName"),
		DocumentRef:  ref,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	util.WriteJSONResponse(w, http.StatusCreated, models.CreateCaseResponse{ID: created.ID, ExternalID: created.ExternalID, Status: created.Status})
}

// saveUpload stores the "document" file under UploadDir and returns its path.
func (c *CasesController) saveUpload(r *http.Request) (string, error) {
	file, header, err := r.FormFile("document")
	if err != nil {
		return "", errors.New("document file is required")
	}
	defer file.Close()

	if err := os.MkdirAll(c.UploadDir, 0o755); err != nil {
		return "", fmt.Errorf("upload dir: %w", err)
	}
	name := uuid.NewString() + "-" + filepath.Base(filepath.Clean("/"+header.Filename))
	path := filepath.Join(c.UploadDir, name)
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, file); err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}
	return path, nil
}

func (c *CasesController) handleGetCaseById(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	found, err := c.Manager.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	util.WriteJSONResponse(w, http.StatusOK, found.View())
}

func (c *CasesController) handleGetCaseByExternalId(w http.ResponseWriter, r *http.Request) {
	externalID := r.PathValue("externalId")
	if externalID == "" {
		util.WriteJSONError(w, http.StatusBadRequest, "externalId is required")
		return
	}
	found, err := c.Manager.GetByExternalID(externalID)
	if err != nil {
		writeError(w, err)
		return
	}
	util.WriteJSONResponse(w, http.StatusOK, found.View())
}

// handleSearchCases reads status, businessName, limit and offset from the query string.
func (c *CasesController) handleSearchCases(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := models.SearchCasesRequest{
		Status:       q.Get("status"),
		BusinessName: q.Get("businessName"),
	}
	if req.Status != "" {
		status, ok := models.ParseCaseStatus(req.Status)
		if !ok {
			util.WriteJSONError(w, http.StatusBadRequest, "unknown status "+req.Status)
			return
		}
		req.Status = string(status)
	}
	for name, dst := range map[string]*int64{"limit": &req.Limit, "offset": &req.Offset} {
		if v := q.Get(name); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil || n < 0 {
				util.WriteJSONError(w, http.StatusBadRequest, name+" must be a non-negative integer")
				return
			}
			*dst = n
		}
	}

	results, err := c.Manager.Search(req)
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]models.CaseApiResponse, 0)
	if results != nil {
		for i := range *results {
			views = append(views, (*results)[i].View())
		}
	}
	util.WriteJSONResponse(w, http.StatusOK, views)
}

func (c *CasesController) handleOverview(w http.ResponseWriter, r *http.Request) {
	counts, err := c.Manager.Overview()
	if err != nil {
		writeError(w, err)
		return
	}
	util.WriteJSONResponse(w, http.StatusOK, counts)
}

// handleStep runs one step. A failed step still returns the persisted case
// together with the error.
func (c *CasesController) handleStep(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	before, err := c.Manager.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	after, stepErr := c.Manager.Step(r.Context(), id)
	if after == nil {
		writeError(w, stepErr)
		return
	}
	resp := stepResponse(before, after)
	status := http.StatusOK
	if stepErr != nil {
		resp.Error = stepErr.Error()
		status = statusFor(stepErr)
	}
	util.WriteJSONResponse(w, status, resp)
}

func stepResponse(before, after *domain.Case) models.StepResponse {
	audit := after.AuditLog
	if audit == nil {
		audit = []string{}
	}
	return models.StepResponse{ID: after.ID, From: before.Status, Status: after.Status, AuditLog: audit}
}

func (c *CasesController) handleGetReview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	view, err := c.Manager.ReviewView(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	util.WriteJSONResponse(w, http.StatusOK, view)
}

func (c *CasesController) handleReview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	req, err := util.DecodeJSONBody[models.ReviewDecisionRequest](r)
	if err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	updated, err := c.Manager.Review(r.Context(), id, req)
	if err != nil {
		writeError(w, err)
		return
	}
	util.WriteJSONResponse(w, http.StatusOK, updated.View())
}

// handleResubmitDocument accepts either a multipart document upload or a
// JSON body naming an already stored document.
func (c *CasesController) handleResubmitDocument(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	var ref string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			util.WriteJSONError(w, http.StatusBadRequest, "invalid multipart form")
			return
		}
		if ref, err = c.saveUpload(r); err != nil {
			util.WriteJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
	} else {
		req, err := util.DecodeJSONBody[models.ResubmitDocumentRequest](r)
		if err != nil || strings.TrimSpace(req.DocumentRef) == "" {
			util.WriteJSONError(w, http.StatusBadRequest, "documentRef is required")
			return
		}
		ref = req.DocumentRef
	}
	updated, err := c.Manager.ResubmitDocument(r.Context(), id, ref)
	if err != nil {
		writeError(w, err)
		return
	}
	util.WriteJSONResponse(w, http.StatusOK, updated.View())
}
