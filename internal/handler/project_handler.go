package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/RubenRamosM/SW1erParcial-sub001/internal/domain"
	"github.com/RubenRamosM/SW1erParcial-sub001/internal/middleware"
	"github.com/RubenRamosM/SW1erParcial-sub001/internal/service"
	"github.com/RubenRamosM/SW1erParcial-sub001/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

type ProjectHandler struct {
	projectService *service.ProjectService
	validator      *validator.Validate
}

func NewProjectHandler(projectService *service.ProjectService) *ProjectHandler {
	return &ProjectHandler{
		projectService: projectService,
		validator:      validator.New(),
	}
}

func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req domain.CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	project, err := h.projectService.Create(userID, &req)
	if err != nil {
		response.InternalError(w, err.Error())
		return
	}

	response.Created(w, project)
}

func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}

	projects, err := h.projectService.List(userID)
	if err != nil {
		response.InternalError(w, err.Error())
		return
	}

	response.Success(w, projects)
}

func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	project, err := h.projectService.Get(vars["id"])
	if err != nil {
		if errors.Is(err, service.ErrProjectNotFound) {
			response.NotFound(w, "project not found")
			return
		}
		response.InternalError(w, err.Error())
		return
	}

	response.Success(w, project)
}

func (h *ProjectHandler) GetBoard(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	board, err := h.projectService.GetBoard(vars["id"])
	if err != nil {
		response.InternalError(w, err.Error())
		return
	}

	response.Success(w, board)
}

func (h *ProjectHandler) UpdateBoard(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}

	vars := mux.Vars(r)

	var req domain.UpdateBoardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	if err := h.projectService.UpdateBoard(vars["id"], userID, &req); err != nil {
		switch {
		case errors.Is(err, service.ErrProjectNotFound):
			response.NotFound(w, "project not found")
		case errors.Is(err, service.ErrNoPermission):
			response.Forbidden(w, "no permission")
		default:
			response.InternalError(w, err.Error())
		}
		return
	}

	response.Success(w, map[string]string{"message": "board updated"})
}
