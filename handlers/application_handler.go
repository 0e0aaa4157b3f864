package handlers

import (
	"errors"
	"net/http"

	"github.com/Dosada05/hackathon-partner-finder/middleware"
	"github.com/Dosada05/hackathon-partner-finder/models"
	"github.com/Dosada05/hackathon-partner-finder/services"
)

type ApplicationHandler struct {
	applicationService services.ApplicationService
}

func NewApplicationHandler(as services.ApplicationService) *ApplicationHandler {
	return &ApplicationHandler{
		applicationService: as,
	}
}

// SubmitApplication godoc
// @Summary Подать заявку в команду
// @Tags applications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param listingID path string true "ID объявления"
// @Param input body services.SubmitApplicationInput true "заявка"
// @Success 201 {object} map[string]models.Application
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /api/listings/{listingID}/applications [post]
func (h *ApplicationHandler) SubmitApplication(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())

	listingID, err := getIDFromURL(r, "listingID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.SubmitApplicationInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	app, err := h.applicationService.Submit(r.Context(), session, listingID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"application": app}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListReceived - заявки на объявления текущего пользователя.
//
// @Tags applications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string][]models.Application
// @Router /api/applications/received [get]
func (h *ApplicationHandler) ListReceived(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())

	apps, err := h.applicationService.ListForOwner(r.Context(), session)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"applications": apps}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListMine godoc
// @Summary Мои заявки
// @Tags applications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string][]models.Application
// @Router /api/applications/mine [get]
func (h *ApplicationHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())

	apps, err := h.applicationService.ListMine(r.Context(), session)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"applications": apps}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// RespondToApplication godoc
// @Summary Принять или отклонить заявку
// @Tags applications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param applicationID path string true "ID заявки"
// @Param input body object true "{\"status\": \"accepted\" | \"rejected\"}"
// @Success 200 {object} map[string]models.Application
// @Failure 403 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /api/applications/{applicationID}/respond [post]
func (h *ApplicationHandler) RespondToApplication(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())

	applicationID, err := getIDFromURL(r, "applicationID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		Status models.ApplicationStatus `json:"status"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.Status == "" {
		badRequestResponse(w, r, errors.New("status is required"))
		return
	}

	app, err := h.applicationService.Respond(r.Context(), session, applicationID, input.Status)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"application": app}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
