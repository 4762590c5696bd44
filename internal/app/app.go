package app

import (
	"context"
	"log"
	"net/http"

	"github.com/gorilla/csrf"
	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"
	"github.com/robfig/cron/v3"

	"calendar-mirror/config"
	"calendar-mirror/internal/database"
	"calendar-mirror/internal/handler"
	"calendar-mirror/internal/middleware"
	"calendar-mirror/internal/repository"
	"calendar-mirror/internal/service"
)

type Application struct {
	Router              *mux.Router
	Config              *config.Config
	DBManager           *database.Manager
	AuthHandler         *handler.AuthHandler
	SubscriptionHandler *handler.SubscriptionHandler
	CalendarHandler     *handler.CalendarHandler
	FeedHandler         *handler.FeedHandler
	AuthMiddleware      *middleware.AuthMiddleware
	SyncService         *service.SyncService

	cron *cron.Cron
}

func New(cfg *config.Config) (*Application, error) {
	dbConfig := database.Config{
		ConnectionString: cfg.DatabaseURL,
		Host:             cfg.DBHost,
		Port:             cfg.DBPort,
		User:             cfg.DBUser,
		Password:         cfg.DBPassword,
		DBName:           cfg.DBName,
	}

	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return nil, err
	}

	db := dbManager.GetDB()
	userRepository := repository.NewUserRepository(db)
	subscriptionRepository := repository.NewSubscriptionRepository(db)
	eventRepository := repository.NewEventRepository(db)
	feedTokenRepository := repository.NewFeedTokenRepository(db)

	authService := service.NewAuthService(userRepository)
	syncService := service.NewSyncService(subscriptionRepository, eventRepository)
	subscriptionService := service.NewSubscriptionService(subscriptionRepository, syncService)
	feedService := service.NewFeedService(eventRepository, feedTokenRepository)

	sessionStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	sessionStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	}

	authMiddleware := middleware.NewAuthMiddleware(sessionStore)
	authHandler := handler.NewAuthHandler(authService, authMiddleware)
	subscriptionHandler := handler.NewSubscriptionHandler(subscriptionService, authMiddleware)
	calendarHandler := handler.NewCalendarHandler(feedService, authMiddleware)
	feedHandler := handler.NewFeedHandler(feedService, authMiddleware, cfg.AppURL)
	router := mux.NewRouter()

	app := &Application{
		Router:              router,
		Config:              cfg,
		DBManager:           dbManager,
		AuthHandler:         authHandler,
		SubscriptionHandler: subscriptionHandler,
		CalendarHandler:     calendarHandler,
		FeedHandler:         feedHandler,
		AuthMiddleware:      authMiddleware,
		SyncService:         syncService,
	}

	app.setupMiddleware()
	app.setupRoutes()

	if err := app.setupScheduler(); err != nil {
		return nil, err
	}

	return app, nil
}

func (a *Application) setupMiddleware() {
	a.Router.Use(securityHeadersMiddleware)

	if a.Config.IsProduction() {
		log.Printf("CSRF Configuration - Production mode enabled")
		csrfOptions := []csrf.Option{
			csrf.Secure(true),
			csrf.HttpOnly(true),
			csrf.Path("/"),
			csrf.SameSite(csrf.SameSiteLaxMode),
		}
		if a.Config.AppURL != "" {
			csrfOptions = append(csrfOptions, csrf.TrustedOrigins([]string{a.Config.AppURL}))
			log.Printf("CSRF Configuration - Trusted Origin: %s", a.Config.AppURL)
		}
		csrfMiddleware := csrf.Protect([]byte(a.Config.CSRFSecret), csrfOptions...)
		a.Router.Use(csrfMiddleware)
	} else {
		log.Printf("CSRF Configuration - Disabled in development mode")
	}
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next.ServeHTTP(w, r)
	})
}

func (a *Application) setupRoutes() {
	a.Router.HandleFunc("/register", a.AuthHandler.Register).Methods("POST")
	a.Router.HandleFunc("/login", a.AuthHandler.Login).Methods("POST")
	a.Router.HandleFunc("/logout", a.AuthHandler.Logout).Methods("POST")

	// The feed endpoint authenticates by token, not session: calendar
	// clients cannot hold a login.
	a.Router.HandleFunc("/feed", a.FeedHandler.MissingToken).Methods("GET")
	a.Router.HandleFunc("/feed/", a.FeedHandler.MissingToken).Methods("GET")
	a.Router.HandleFunc("/feed/{token}", a.FeedHandler.ServeFeed).Methods("GET", "HEAD")

	protected := a.Router.PathPrefix("/").Subrouter()
	protected.Use(a.AuthMiddleware.RequireAuth)

	protected.HandleFunc("/subscriptions", a.SubscriptionHandler.Create).Methods("POST")
	protected.HandleFunc("/subscriptions", a.SubscriptionHandler.List).Methods("GET")
	protected.HandleFunc("/subscriptions/sync", a.SubscriptionHandler.SyncAll).Methods("POST")
	protected.HandleFunc("/subscriptions/{id}/sync", a.SubscriptionHandler.Sync).Methods("POST")
	protected.HandleFunc("/subscriptions/{id}", a.SubscriptionHandler.Get).Methods("GET")
	protected.HandleFunc("/subscriptions/{id}", a.SubscriptionHandler.Update).Methods("PATCH")
	protected.HandleFunc("/subscriptions/{id}", a.SubscriptionHandler.Delete).Methods("DELETE")

	protected.HandleFunc("/calendar/export", a.CalendarHandler.Export).Methods("GET")
	protected.HandleFunc("/calendar/import", a.CalendarHandler.Import).Methods("POST")

	protected.HandleFunc("/feed-tokens", a.FeedHandler.CreateToken).Methods("POST")
	protected.HandleFunc("/feed-tokens", a.FeedHandler.ListTokens).Methods("GET")
	protected.HandleFunc("/feed-tokens/{id}", a.FeedHandler.DeactivateToken).Methods("DELETE")
}

func (a *Application) setupScheduler() error {
	a.cron = cron.New()

	_, err := a.cron.AddFunc(a.Config.SyncSchedule, func() {
		log.Println("Scheduled sync starting")
		results, err := a.SyncService.SyncAll(context.Background())
		if err != nil {
			log.Printf("Scheduled sync failed: %v", err)
			return
		}

		failed := 0
		for _, result := range results {
			if !result.Success {
				failed++
			}
		}
		log.Printf("Scheduled sync complete: %d subscriptions, %d failed", len(results), failed)
	})
	if err != nil {
		return err
	}

	a.cron.Start()
	return nil
}

func (a *Application) Close() error {
	if a.cron != nil {
		a.cron.Stop()
	}
	if a.DBManager != nil {
		return a.DBManager.Close()
	}
	return nil
}
