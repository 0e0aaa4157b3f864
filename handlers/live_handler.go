package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/Dosada05/hackathon-partner-finder/filters"
	"github.com/Dosada05/hackathon-partner-finder/live"
	"github.com/Dosada05/hackathon-partner-finder/middleware"
	"github.com/Dosada05/hackathon-partner-finder/models"
	"github.com/Dosada05/hackathon-partner-finder/services"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// clientMessage - сообщение клиента по WebSocket, например
// {"type": "filters", "payload": {"text": "go", "location": "online"}}.
type clientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// LiveHandler отдаёт живые ленты: каждое изменение данных приводит к
// отправке клиенту полного нового снимка.
type LiveHandler struct {
	listingService     services.ListingService
	bookmarkService    services.BookmarkService
	applicationService services.ApplicationService
	upgrader           websocket.Upgrader
	logger             *slog.Logger
	now                func() time.Time
}

func NewLiveHandler(
	ls services.ListingService,
	bs services.BookmarkService,
	as services.ApplicationService,
	allowedOrigins []string,
	logger *slog.Logger,
) *LiveHandler {
	return &LiveHandler{
		listingService:     ls,
		bookmarkService:    bs,
		applicationService: as,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger,
		now:    time.Now,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	allowAll := len(allowed) == 0 || slices.Contains(allowed, "*")
	return func(r *http.Request) bool {
		if allowAll {
			return true
		}
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}

func (h *LiveHandler) upgrade(w http.ResponseWriter, r *http.Request) (*live.Conn, bool) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade сам отвечает клиенту ошибкой
		h.logger.Warn("websocket upgrade failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		return nil, false
	}
	conn := live.NewConn(ws, h.logger)
	go conn.WritePump()
	return conn, true
}

// Listings - живая лента объявлений. Фильтры берутся из query (как в
// GET /api/listings) и могут меняться сообщением {"type": "filters"}.
// Для авторизованного пользователя отметки закладок тоже обновляются вживую.
//
// @Tags live
// @Param q query string false "как в GET /api/listings"
// @Param token query string false "JWT для отметок закладок"
// @Success 101
// @Failure 400 {object} map[string]string
// @Router /ws/listings [get]
func (h *LiveHandler) Listings(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())

	cfg, err := filters.ParseQuery(r.URL.Query())
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	conn, ok := h.upgrade(w, r)
	if !ok {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	filterUpdates := make(chan filters.Config, 1)
	go conn.ReadPump(func(raw []byte) {
		next, err := decodeFilters(raw)
		if err != nil {
			conn.Send(live.Message{Type: "error", Error: err.Error()})
			return
		}
		// важен только последний набор фильтров
		select {
		case <-filterUpdates:
		default:
		}
		filterUpdates <- next
	})

	listings := h.listingService.SubscribeActive(ctx)
	defer listings.Cancel()

	var bookmarkUpdates <-chan live.Snapshot[models.BookmarkIndex]
	if session.IsAuthenticated() {
		bookmarks, err := h.bookmarkService.Subscribe(ctx, session)
		if err != nil {
			h.logger.Error("failed to subscribe to bookmarks", slog.String("user_id", session.UserID.String()), slog.Any("error", err))
		} else {
			defer bookmarks.Cancel()
			bookmarkUpdates = bookmarks.Updates()
		}
	}

	var active []models.Listing
	loaded := false
	idx := models.BookmarkIndex{}

	for {
		select {
		case <-conn.Done():
			return
		case snap, ok := <-listings.Updates():
			if !ok {
				return
			}
			if snap.Err != nil {
				h.logger.Error("failed to load active listings", slog.Any("error", snap.Err))
				conn.Send(live.Message{Type: "error", Error: "failed to load listings"})
				continue
			}
			active, loaded = snap.Data, true
		case snap, ok := <-bookmarkUpdates:
			if !ok {
				bookmarkUpdates = nil
				continue
			}
			if snap.Err != nil {
				h.logger.Error("failed to load bookmarks", slog.String("user_id", session.UserID.String()), slog.Any("error", snap.Err))
				continue
			}
			idx = snap.Data
		case cfg = <-filterUpdates:
		}

		if !loaded {
			continue
		}
		now := h.now()
		visible := filters.Apply(filters.Upcoming(active, now), cfg, now)
		msg := live.Message{
			Type:    "listings",
			Payload: jsonResponse{"listings": newListingViews(visible, idx), "filters": cfg},
		}
		if !conn.Send(msg) {
			return
		}
	}
}

func decodeFilters(raw []byte) (filters.Config, error) {
	var msg clientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return filters.Config{}, errInvalidMessage
	}
	if msg.Type != "filters" {
		return filters.Config{}, errUnsupportedMessage
	}
	var cfg filters.Config
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &cfg); err != nil {
			return filters.Config{}, errInvalidMessage
		}
	}
	if err := cfg.Validate(); err != nil {
		return filters.Config{}, err
	}
	return cfg.Normalized(), nil
}

// Bookmarks - живой список ID объявлений в закладках текущего пользователя.
//
// @Tags live
// @Security BearerAuth
// @Param token query string false "JWT, если нельзя передать заголовок"
// @Success 101
// @Failure 401 {object} map[string]string
// @Router /ws/bookmarks [get]
func (h *LiveHandler) Bookmarks(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())

	conn, ok := h.upgrade(w, r)
	if !ok {
		return
	}
	defer conn.Close()
	go conn.ReadPump(nil)

	stream, err := h.bookmarkService.Subscribe(r.Context(), session)
	if err != nil {
		conn.Send(live.Message{Type: "error", Error: err.Error()})
		return
	}
	defer stream.Cancel()

	forward(conn, stream, "bookmarks", h.logger, func(idx models.BookmarkIndex) interface{} {
		return jsonResponse{"listing_ids": sortedIDs(idx)}
	})
}

// Applications - живой список заявок на объявления текущего пользователя.
//
// @Tags live
// @Security BearerAuth
// @Param token query string false "JWT, если нельзя передать заголовок"
// @Success 101
// @Failure 401 {object} map[string]string
// @Router /ws/applications [get]
func (h *LiveHandler) Applications(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())

	conn, ok := h.upgrade(w, r)
	if !ok {
		return
	}
	defer conn.Close()
	go conn.ReadPump(nil)

	stream, err := h.applicationService.SubscribeForOwner(r.Context(), session)
	if err != nil {
		conn.Send(live.Message{Type: "error", Error: err.Error()})
		return
	}
	defer stream.Cancel()

	forward(conn, stream, "applications", h.logger, func(apps []models.Application) interface{} {
		return jsonResponse{"applications": apps}
	})
}

// forward пересылает снимки stream в conn, пока одна из сторон не закроется.
func forward[T any](conn *live.Conn, stream *live.Stream[T], msgType string, logger *slog.Logger, payload func(T) interface{}) {
	for {
		select {
		case <-conn.Done():
			return
		case snap, ok := <-stream.Updates():
			if !ok {
				return
			}
			msg := live.Message{Type: msgType}
			if snap.Err != nil {
				logger.Error("live query failed", slog.String("type", msgType), slog.Any("error", snap.Err))
				msg = live.Message{Type: "error", Error: "failed to load " + msgType}
			} else {
				msg.Payload = payload(snap.Data)
			}
			if !conn.Send(msg) {
				return
			}
		}
	}
}

func sortedIDs(idx models.BookmarkIndex) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(idx))
	for id := range idx {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int {
		return strings.Compare(a.String(), b.String())
	})
	return ids
}
