// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/ndquoc/pairmatch/internal/cache"
	"github.com/ndquoc/pairmatch/internal/database"
	"github.com/ndquoc/pairmatch/internal/middleware"
	"github.com/ndquoc/pairmatch/internal/session"
	"github.com/ndquoc/pairmatch/internal/ws"
)

func main() {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	// Both backing services are optional: without Postgres stats live
	// only in memory, without Redis finished matches are not archived.
	var store session.PlayerStore
	if db, err := database.Connect(context.Background()); err != nil {
		logger.Warnf("running without database: %v", err)
	} else {
		store = db
		defer db.Close()
	}

	var recorder session.MatchRecorder
	if pub, err := cache.Connect(); err != nil {
		logger.Warnf("running without match archive: %v", err)
	} else {
		recorder = pub
		defer pub.Close()
	}

	manager := session.NewManager(logger, store, recorder)

	mux := http.NewServeMux()
	mux.Handle("/ws", middleware.LogMiddleware(logger)(http.HandlerFunc(
		ws.Handler(logger, manager),
	)))

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
