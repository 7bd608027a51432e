// @title           Skarbiec API
// @version         1.0
// @description     Encrypted file vault with admin-approved device uploads and time/count-bounded share links.
// @host            localhost
// @schemes         http https
// @BasePath        /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"log"
	"net/http"

	"skarbiec/internal/api"
	"skarbiec/internal/cleanup"
	"skarbiec/internal/config"
	"skarbiec/internal/database"
	"skarbiec/internal/ratelimit"
	"skarbiec/internal/storage"
	"skarbiec/internal/websocket"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "skarbiec/docs"

	httpSwagger "github.com/swaggo/http-swagger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Nie można wczytać konfiguracji: %v", err)
	}

	dbpool, err := pgxpool.New(context.Background(), cfg.DB.Source)
	if err != nil {
		log.Fatalf("Nie można połączyć się z bazą danych: %v", err)
	}
	defer dbpool.Close()

	if err := dbpool.Ping(context.Background()); err != nil {
		log.Fatalf("Nie można pingować bazy danych: %v", err)
	}
	log.Println("Pomyślnie połączono z bazą danych")

	var blobs storage.BlobStore
	switch cfg.Storage.Driver {
	case "r2":
		blobs = storage.NewR2Storage(
			cfg.Storage.R2.AccessKeyID,
			cfg.Storage.R2.SecretAccessKey,
			cfg.Storage.R2.AccountID,
			cfg.Storage.R2.Bucket,
			cfg.Storage.R2.Region,
		)
		log.Printf("Blob storage: R2 bucket %s", cfg.Storage.R2.Bucket)
	default:
		blobs, err = storage.NewLocalStorage(cfg.Storage.Path)
		if err != nil {
			log.Fatalf("Nie można zainicjować local storage: %v", err)
		}
		log.Printf("Blob storage: local path %s", cfg.Storage.Path)
	}

	wsHub := websocket.NewHub()
	go wsHub.Run()

	store := database.NewStore(dbpool)
	limiter := ratelimit.New(store)

	sweeper := cleanup.NewSweeper(store, blobs, limiter)
	sweeper.OnSweep = func(res cleanup.Result) {
		wsHub.Notify(websocket.EventSweepCompleted, res)
	}
	go sweeper.Run(context.Background(), cfg.Cleanup.Interval)

	server := api.NewServer(cfg, store, blobs, limiter, wsHub)

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "X-Device-Token", "Content-Type"},
		AllowCredentials: false,
	}))
	r.Use(api.MetricsMiddleware)

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("https://localhost/swagger/doc.json"),
	))

	r.Get("/health", server.HealthCheckHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Public surface: registration, login, device trust requests and
		// share-link downloads.
		r.Post("/auth/register", server.RegisterHandler)
		r.Post("/auth/login", server.LoginHandler)
		r.Get("/auth/check-users", server.CheckUsersHandler)
		r.Post("/devices/request", server.RequestDeviceHandler)
		r.Get("/download/{fileId}", server.ProbeFileHandler)
		r.Post("/download/{fileId}", server.FetchFileHandler)
		r.Get("/download/{fileId}/raw", server.FetchFileRawHandler)

		// Accepts either an admin session or the device's own token; the
		// handler resolves both itself.
		r.Delete("/devices", server.RevokeDeviceHandler)

		r.Group(func(r chi.Router) {
			r.Use(server.DeviceAuthMiddleware)
			r.Post("/files/upload", server.UploadFileHandler)
		})

		r.Group(func(r chi.Router) {
			r.Use(server.AuthMiddleware)
			r.Post("/auth/logout", server.LogoutHandler)
			r.Get("/auth/me", server.MeHandler)
			r.Get("/devices", server.ListDevicesHandler)
			r.Get("/files", server.ListFilesHandler)
			r.Get("/ws", server.ServeWsHandler)

			r.Group(func(r chi.Router) {
				r.Use(server.AdminMiddleware)
				r.Get("/users", server.ListUsersHandler)
				r.Post("/users", server.CreateUserHandler)
				r.Patch("/users/{id}", server.UpdateUserHandler)
				r.Delete("/users/{id}", server.DeleteUserHandler)
				r.Get("/devices/pending", server.ListPendingDevicesHandler)
				r.Post("/devices/{id}/approve", server.ResolveDeviceHandler)
			})
		})
	})

	log.Printf("Uruchamianie serwera na porcie :%s", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatalf("Nie można uruchomić serwera: %v", err)
	}
}
