package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Dosada05/hackathon-partner-finder/filters"
	"github.com/Dosada05/hackathon-partner-finder/middleware"
	"github.com/Dosada05/hackathon-partner-finder/models"
	"github.com/Dosada05/hackathon-partner-finder/services"
)

type ListingHandler struct {
	listingService  services.ListingService
	bookmarkService services.BookmarkService
	now             func() time.Time
}

func NewListingHandler(ls services.ListingService, bs services.BookmarkService) *ListingHandler {
	return &ListingHandler{
		listingService:  ls,
		bookmarkService: bs,
		now:             time.Now,
	}
}

// listingView - объявление в ленте с отметкой закладки текущего пользователя.
type listingView struct {
	models.Listing
	SpotsLeft    int  `json:"spots_left"`
	IsBookmarked bool `json:"is_bookmarked"`
}

func newListingViews(listings []models.Listing, idx models.BookmarkIndex) []listingView {
	views := make([]listingView, len(listings))
	for i, l := range listings {
		views[i] = listingView{Listing: l, SpotsLeft: l.SpotsLeft(), IsBookmarked: idx.Contains(l.ID)}
	}
	return views
}

// ListListings godoc
// @Summary Лента активных объявлений
// @Description Только предстоящие хакатоны; фильтры объединяются по И.
// @Tags listings
// @Produce json
// @Param q query string false "подстрока (без учёта регистра) в названии, описании или локации; пробелы значимы"
// @Param tags query string false "теги через запятую (хотя бы один должен совпасть)"
// @Param location query string false "all | online | offline"
// @Param date query string false "all | week | month | quarter"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Router /api/listings [get]
func (h *ListingHandler) ListListings(w http.ResponseWriter, r *http.Request) {
	cfg, err := filters.ParseQuery(r.URL.Query())
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	listings, err := h.listingService.Browse(r.Context(), cfg, h.now())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	idx := models.BookmarkIndex{}
	session := middleware.GetSessionFromContext(r.Context())
	if session.IsAuthenticated() {
		idx, err = h.bookmarkService.Index(r.Context(), session)
		if err != nil {
			mapServiceErrorToHTTP(w, r, err)
			return
		}
	}

	response := jsonResponse{
		"listings": newListingViews(listings, idx),
		"filters":  cfg,
	}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetListing godoc
// @Summary Объявление по ID
// @Tags listings
// @Produce json
// @Param listingID path string true "ID объявления"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string
// @Router /api/listings/{listingID} [get]
func (h *ListingHandler) GetListing(w http.ResponseWriter, r *http.Request) {
	listingID, err := getIDFromURL(r, "listingID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	listing, err := h.listingService.GetByID(r.Context(), listingID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	bookmarked := false
	session := middleware.GetSessionFromContext(r.Context())
	if session.IsAuthenticated() {
		bookmarked, err = h.bookmarkService.IsBookmarked(r.Context(), session, listingID)
		if err != nil {
			mapServiceErrorToHTTP(w, r, err)
			return
		}
	}

	view := listingView{Listing: *listing, SpotsLeft: listing.SpotsLeft(), IsBookmarked: bookmarked}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"listing": view}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// CreateListing godoc
// @Summary Создать объявление
// @Tags listings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param input body services.CreateListingInput true "объявление"
// @Success 201 {object} map[string]models.Listing
// @Failure 422 {object} map[string]interface{}
// @Router /api/listings [post]
func (h *ListingHandler) CreateListing(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())

	var input services.CreateListingInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	listing, err := h.listingService.Create(r.Context(), session, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"listing": listing}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListMyListings godoc
// @Summary Мои объявления, включая неактивные
// @Tags listings
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string][]models.Listing
// @Router /api/listings/mine [get]
func (h *ListingHandler) ListMyListings(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())

	listings, err := h.listingService.ListMine(r.Context(), session)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"listings": listings}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// UpdateListing godoc
// @Summary Изменить объявление
// @Tags listings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param listingID path string true "ID объявления"
// @Param input body services.UpdateListingInput true "изменяемые поля"
// @Success 200 {object} map[string]models.Listing
// @Failure 403 {object} map[string]string
// @Failure 422 {object} map[string]interface{}
// @Router /api/listings/{listingID} [patch]
func (h *ListingHandler) UpdateListing(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())

	listingID, err := getIDFromURL(r, "listingID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.UpdateListingInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.IsEmpty() {
		badRequestResponse(w, r, errors.New("no fields to update"))
		return
	}

	listing, err := h.listingService.Update(r.Context(), session, listingID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"listing": listing}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ToggleListingActive godoc
// @Summary Переключить приём заявок
// @Tags listings
// @Produce json
// @Security BearerAuth
// @Param listingID path string true "ID объявления"
// @Success 200 {object} map[string]models.Listing
// @Failure 403 {object} map[string]string
// @Router /api/listings/{listingID}/active [post]
func (h *ListingHandler) ToggleListingActive(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())

	listingID, err := getIDFromURL(r, "listingID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	listing, err := h.listingService.ToggleActive(r.Context(), session, listingID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"listing": listing}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// DeleteListing требует ?confirm=true: удаление необратимо и уносит заявки и закладки.
//
// @Tags listings
// @Security BearerAuth
// @Param listingID path string true "ID объявления"
// @Param confirm query bool true "должно быть true"
// @Success 204
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /api/listings/{listingID} [delete]
func (h *ListingHandler) DeleteListing(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())

	listingID, err := getIDFromURL(r, "listingID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	confirmed := false
	if raw := r.URL.Query().Get("confirm"); raw != "" {
		confirmed, err = strconv.ParseBool(raw)
		if err != nil {
			badRequestResponse(w, r, errors.New("confirm must be a boolean"))
			return
		}
	}

	if err := h.listingService.Delete(r.Context(), session, listingID, confirmed); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
