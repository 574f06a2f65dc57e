package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mentorhive/relay/internal/api"
	"github.com/mentorhive/relay/internal/config"
	"github.com/mentorhive/relay/internal/relay"
	"github.com/mentorhive/relay/internal/stats"
	"github.com/mentorhive/relay/internal/store"
)

// dev-only fallback, override with -signing-key in any real deployment
const defaultSigningKey = "c2VjcmV0LXNpZ25pbmcta2V5"

const shutdownTimeout = 10 * time.Second

type stringSliceFlag []string

func (f *stringSliceFlag) String() string {
	return strings.Join(*f, ",")
}

func (f *stringSliceFlag) Set(value string) error {
	*f = append(*f, value)
	return nil
}

func main() {
	logger := log.New(os.Stderr, "[relay] ", log.LstdFlags|log.Lshortfile)

	addr := flag.String("addr", ":8080", "server listen address")
	mongoURI := flag.String("mongo-uri", "mongodb://localhost:27017", "mongodb connection uri")
	mongoDB := flag.String("mongo-db", "mentorhive", "mongodb database name")
	signingKey := flag.String("signing-key", defaultSigningKey, "base64 encoded jwt signing key")
	ringTimeout := flag.Duration("call-ring-timeout", time.Minute, "how long a call rings before timing out")
	var allowedOrigins stringSliceFlag
	flag.Var(&allowedOrigins, "allowed-origins", "allowed websocket/CORS origin, repeatable")
	flag.Parse()

	if len(allowedOrigins) == 0 {
		allowedOrigins = stringSliceFlag{"http://localhost:3000"}
	}

	cfg, err := config.NewConfig(*addr, *mongoURI, *mongoDB, *signingKey, allowedOrigins, *ringTimeout)
	if err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}

	st, err := store.NewMongoStore(cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		logger.Fatalf("failed to connect to store: %v", err)
	}

	mux := http.NewServeMux()
	su := stats.NewStatsUpdater(mux)
	su.Run()

	gw, err := relay.NewGateway(logger, st, st, su, cfg.CallRingTimeout)
	if err != nil {
		logger.Fatalf("failed to create gateway: %v", err)
	}
	go gw.Run()

	app := api.NewRelayApp(mux, logger, gw, st, st, cfg)

	errChan := make(chan error, 1)
	go func() {
		errChan <- app.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server error: %v", err)
		}
	case sig := <-sigChan:
		logger.Printf("received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.Shutdown(ctx); err != nil {
		logger.Printf("http shutdown: %v", err)
	}
	if err := gw.Shutdown(ctx); err != nil {
		logger.Printf("gateway shutdown: %v", err)
	}
	if err := st.Close(ctx); err != nil {
		logger.Printf("store disconnect: %v", err)
	}
	su.Stop()

	logger.Println("server stopped")
}
