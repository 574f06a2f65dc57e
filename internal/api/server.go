package api

import (
	"context"
	"log"
	"net/http"

	"github.com/gorilla/handlers"

	"github.com/mentorhive/relay/internal/config"
	"github.com/mentorhive/relay/internal/relay"
	"github.com/mentorhive/relay/internal/store"
)

// RelayApp wires the HTTP surface: the websocket endpoint, history
// fetches and health checks.
type RelayApp struct {
	server    *http.Server
	log       *log.Logger
	gateway   *relay.Gateway
	store     store.MessageStore
	directory store.ProfileDirectory
	config    *config.Config
}

func NewRelayApp(mux *http.ServeMux, logger *log.Logger, gw *relay.Gateway, st store.MessageStore, dir store.ProfileDirectory, cfg *config.Config) *RelayApp {
	app := &RelayApp{
		log:       logger,
		gateway:   gw,
		store:     st,
		directory: dir,
		config:    cfg,
	}

	mux.Handle("GET /ws", app.authMiddleware(http.HandlerFunc(app.serveWs)))
	mux.Handle("GET /api/messages", app.authMiddleware(http.HandlerFunc(app.getMessages)))
	mux.Handle("GET /healthz", http.HandlerFunc(app.healthz))

	cors := handlers.CORS(
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
		handlers.AllowCredentials(),
	)

	app.server = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: app.errorHandler(cors(mux)),
	}

	return app
}

func (app *RelayApp) Start() error {
	app.log.Printf("listening on %s", app.server.Addr)
	return app.server.ListenAndServe()
}

func (app *RelayApp) Shutdown(ctx context.Context) error {
	return app.server.Shutdown(ctx)
}
