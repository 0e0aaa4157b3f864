package handlers

import (
	"net/http"

	"github.com/Dosada05/hackathon-partner-finder/middleware"
	"github.com/Dosada05/hackathon-partner-finder/services"
)

type BookmarkHandler struct {
	bookmarkService services.BookmarkService
}

func NewBookmarkHandler(bs services.BookmarkService) *BookmarkHandler {
	return &BookmarkHandler{
		bookmarkService: bs,
	}
}

// ListBookmarks возвращает закладки и сами объявления в закладках.
//
// @Tags bookmarks
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /api/bookmarks [get]
func (h *BookmarkHandler) ListBookmarks(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())

	bookmarks, err := h.bookmarkService.List(r.Context(), session)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	listings, err := h.bookmarkService.ListBookmarkedListings(r.Context(), session)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"bookmarks": bookmarks,
		"listings":  listings,
	}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// AddBookmark и RemoveBookmark идемпотентны.
//
// @Tags bookmarks
// @Produce json
// @Security BearerAuth
// @Param listingID path string true "ID объявления"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string
// @Router /api/bookmarks/{listingID} [put]
func (h *BookmarkHandler) AddBookmark(w http.ResponseWriter, r *http.Request) {
	h.setBookmarked(w, r, true)
}

// RemoveBookmark godoc
// @Summary Убрать из закладок
// @Tags bookmarks
// @Produce json
// @Security BearerAuth
// @Param listingID path string true "ID объявления"
// @Success 200 {object} map[string]interface{}
// @Router /api/bookmarks/{listingID} [delete]
func (h *BookmarkHandler) RemoveBookmark(w http.ResponseWriter, r *http.Request) {
	h.setBookmarked(w, r, false)
}

func (h *BookmarkHandler) setBookmarked(w http.ResponseWriter, r *http.Request, bookmarked bool) {
	session := middleware.GetSessionFromContext(r.Context())

	listingID, err := getIDFromURL(r, "listingID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.bookmarkService.SetBookmarked(r.Context(), session, listingID, bookmarked); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{"listing_id": listingID, "bookmarked": bookmarked}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ToggleBookmark godoc
// @Summary Переключить закладку
// @Tags bookmarks
// @Produce json
// @Security BearerAuth
// @Param listingID path string true "ID объявления"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string
// @Router /api/bookmarks/{listingID}/toggle [post]
func (h *BookmarkHandler) ToggleBookmark(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())

	listingID, err := getIDFromURL(r, "listingID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	bookmarked, err := h.bookmarkService.Toggle(r.Context(), session, listingID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{"listing_id": listingID, "bookmarked": bookmarked}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
