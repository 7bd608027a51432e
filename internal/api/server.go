package api

import (
	"skarbiec/internal/config"
	"skarbiec/internal/database"
	"skarbiec/internal/ratelimit"
	"skarbiec/internal/storage"
	"skarbiec/internal/websocket"
)

type Server struct {
	config  *config.Config
	store   *database.PostgresStore
	blobs   storage.BlobStore
	limiter *ratelimit.Limiter
	wsHub   *websocket.Hub
}

func NewServer(cfg *config.Config, store *database.PostgresStore, blobs storage.BlobStore, limiter *ratelimit.Limiter, wsHub *websocket.Hub) *Server {
	return &Server{
		config:  cfg,
		store:   store,
		blobs:   blobs,
		limiter: limiter,
		wsHub:   wsHub,
	}
}
