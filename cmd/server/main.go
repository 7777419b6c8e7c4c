// cmd/server/main.go
package main

import (
	"net/http"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/fortuno-game/fortuno/internal/auth"
	"github.com/fortuno-game/fortuno/internal/cache"
	"github.com/fortuno-game/fortuno/internal/database"
	"github.com/fortuno-game/fortuno/internal/handlers"
	"github.com/fortuno-game/fortuno/internal/middleware"
)

func main() {
	auth.Init()
	database.ConnectDB()

	logger := logrus.New()
	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logger.SetLevel(lvl)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	if err := cache.ConnectRedis(); err != nil {
		// The action journal and started-flag cache degrade gracefully.
		logger.WithError(err).Warn("redis unavailable, running without journal and flag cache")
	}

	srv := handlers.NewGameServer(logger)
	logged := middleware.LogMiddleware(logger)

	mux := http.NewServeMux()

	// user endpoints
	mux.HandleFunc("/user/create", handlers.CreateUserHandler)
	mux.HandleFunc("/user/login", handlers.LoginHandler)

	// room endpoints
	mux.Handle("/room/create", logged(handlers.CreateRoomHandler(srv)))
	mux.Handle("/room/list", logged(handlers.ListRoomsHandler(srv)))
	mux.Handle("/room/started/", logged(handlers.RoomStartedHandler(srv)))
	mux.Handle("/room/ws/", logged(handlers.RoomWSHandler(logger, srv)))

	// game websocket
	mux.Handle("/game/ws/", logged(handlers.GameWSHandler(logger, srv)))

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("fortuno server listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatalf("server exited: %v", err)
	}
}
