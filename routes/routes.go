package routes

import (
	"log/slog"
	"net/http"

	_ "github.com/Dosada05/hackathon-partner-finder/docs" // регистрирует описание API для swagger
	"github.com/Dosada05/hackathon-partner-finder/handlers"
	"github.com/Dosada05/hackathon-partner-finder/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Handlers struct {
	Auth        *handlers.AuthHandler
	User        *handlers.UserHandler
	Listing     *handlers.ListingHandler
	Application *handlers.ApplicationHandler
	Bookmark    *handlers.BookmarkHandler
	Live        *handlers.LiveHandler
}

func SetupRoutes(router chi.Router, auth *middleware.Authenticator, h Handlers, allowedOrigins []string, logger *slog.Logger) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(middleware.RequestLogger(logger))
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Get("/swagger/*", httpSwagger.WrapHandler)

	router.Route("/api", func(r chi.Router) {
		// Сессия (anonymous / authenticated / error) есть у каждого запроса, токен только из заголовка
		r.Use(auth.Session)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", h.Auth.Signup)
			r.Post("/login", h.Auth.Login)
			r.Post("/password/forgot", h.Auth.ForgotPassword)
			r.Post("/password/reset", h.Auth.ResetPassword)
			r.Get("/oauth", h.Auth.Providers)
			r.Get("/oauth/{provider}/begin", h.Auth.OAuthBegin)
			r.Get("/oauth/{provider}/callback", h.Auth.OAuthCallback)
		})

		r.Route("/users", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAuth)
				r.Get("/me", h.User.GetMe)
				r.Patch("/me", h.User.UpdateMe)
				r.Put("/me/photo", h.User.UploadPhoto)
			})
			r.Get("/{userID}", h.User.GetUserByID)
		})

		r.Route("/listings", func(r chi.Router) {
			r.Get("/", h.Listing.ListListings)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAuth)
				r.Post("/", h.Listing.CreateListing)
				r.Get("/mine", h.Listing.ListMyListings)
			})

			r.Route("/{listingID}", func(r chi.Router) {
				r.Get("/", h.Listing.GetListing)

				r.Group(func(r chi.Router) {
					r.Use(auth.RequireAuth)
					r.Patch("/", h.Listing.UpdateListing)
					r.Delete("/", h.Listing.DeleteListing)
					r.Post("/active", h.Listing.ToggleListingActive)
					r.Post("/applications", h.Application.SubmitApplication)
				})
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth)

			r.Route("/applications", func(r chi.Router) {
				r.Get("/received", h.Application.ListReceived)
				r.Get("/mine", h.Application.ListMine)
				r.Post("/{applicationID}/respond", h.Application.RespondToApplication)
			})

			r.Route("/bookmarks", func(r chi.Router) {
				r.Get("/", h.Bookmark.ListBookmarks)
				r.Put("/{listingID}", h.Bookmark.AddBookmark)
				r.Delete("/{listingID}", h.Bookmark.RemoveBookmark)
				r.Post("/{listingID}/toggle", h.Bookmark.ToggleBookmark)
			})
		})
	})

	// Браузерный WebSocket не умеет слать заголовки: токен можно передать в ?token=
	router.Route("/ws", func(r chi.Router) {
		r.Use(auth.QueryTokenSession)
		r.Get("/listings", h.Live.Listings)
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth)
			r.Get("/bookmarks", h.Live.Bookmarks)
			r.Get("/applications", h.Live.Applications)
		})
	})
}
