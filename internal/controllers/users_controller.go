package controllers

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/RealZimboGuy/onboardflow/internal/engine"
	"github.com/RealZimboGuy/onboardflow/internal/util"
	"github.com/RealZimboGuy/onboardflow/pkg/onboardflow/core"
	"github.com/RealZimboGuy/onboardflow/pkg/onboardflow/domain"
	"github.com/RealZimboGuy/onboardflow/pkg/onboardflow/models"
)

type UsersController struct {
	AuthController
}

func NewUsersController(userRepo engine.UserRepo) *UsersController {
	return &UsersController{
		AuthController: AuthController{
			UserRepo: userRepo,
		},
	}
}

// handleGetUsers returns all users
func (c *UsersController) handleGetUsers(w http.ResponseWriter, r *http.Request) {
	users, err := c.UserRepo.FindAll()
	if err != nil {
		slog.Error("Failed to get users", "error", err)
		util.WriteJSONError(w, http.StatusInternalServerError, "Failed to get users")
		return
	}
	if users == nil {
		users = &[]domain.User{}
	}
	util.WriteJSONResponse(w, http.StatusOK, users)
}

// CreateUser hashes the password and stores a new enabled analyst account.
// It is shared by the HTTP API and the CLI.
func CreateUser(repo engine.UserRepo, req models.CreateUserRequest) (*domain.User, int, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return nil, http.StatusBadRequest, errUserInput("username and password are required")
	}
	existing, err := repo.FindByUsername(username)
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	if existing != nil {
		return nil, http.StatusConflict, errUserInput("username already exists")
	}
	hashed, err := util.HashPassword(req.Password)
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	user := &domain.User{
		Username: username,
		Password: hashed,
		Enabled:  sql.NullBool{Bool: true, Valid: true},
	}
	if req.ApiKey != "" {
		user.ApiKey = sql.NullString{String: req.ApiKey, Valid: true}
	}
	id, err := repo.Save(user)
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	user.ID = id
	return user, http.StatusCreated, nil
}

type errUserInput string

func (e errUserInput) Error() string { return string(e) }

// handleCreateUser creates a new user
func (c *UsersController) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	req, err := util.DecodeJSONBody[models.CreateUserRequest](r)
	if err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, "Invalid user data")
		return
	}
	user, status, err := CreateUser(c.UserRepo, req)
	if err != nil {
		if status == http.StatusInternalServerError {
			slog.Error("Failed to create user", "error", err)
			util.WriteJSONError(w, status, "Failed to create user")
			return
		}
		util.WriteJSONError(w, status, err.Error())
		return
	}
	slog.Info("User created", "username", user.Username, "by", core.Username(r.Context()))
	util.WriteJSONResponse(w, http.StatusCreated, user)
}

// handleGetUserById gets a user by their ID
func (c *UsersController) handleGetUserById(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	user, err := c.UserRepo.FindById(id)
	if err != nil {
		slog.Error("Failed to get user", "error", err)
		util.WriteJSONError(w, http.StatusInternalServerError, "Failed to get user")
		return
	}
	if user == nil {
		util.WriteJSONError(w, http.StatusNotFound, "User not found")
		return
	}
	util.WriteJSONResponse(w, http.StatusOK, user)
}

// handleDeleteUser deletes a user by ID
func (c *UsersController) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	if err := c.UserRepo.DeleteById(id); err != nil {
		slog.Error("Failed to delete user", "error", err)
		util.WriteJSONError(w, http.StatusInternalServerError, "Failed to delete user")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
