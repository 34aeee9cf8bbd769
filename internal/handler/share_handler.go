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

type ShareHandler struct {
	shareService *service.ShareService
	validator    *validator.Validate
}

func NewShareHandler(shareService *service.ShareService) *ShareHandler {
	return &ShareHandler{
		shareService: shareService,
		validator:    validator.New(),
	}
}

func (h *ShareHandler) CreateLink(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}

	vars := mux.Vars(r)

	var req domain.CreateShareLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	link, err := h.shareService.CreateLink(vars["id"], userID, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrProjectNotFound):
			response.NotFound(w, "project not found")
		case errors.Is(err, service.ErrNoPermission):
			response.Forbidden(w, "only the owner can share a project")
		default:
			response.InternalError(w, err.Error())
		}
		return
	}

	response.Created(w, link)
}
