package main

import (
	"fmt"
	"log"
	"net/http"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/vqiu25/inky/internal/auth"
	"github.com/vqiu25/inky/internal/cache"
	"github.com/vqiu25/inky/internal/config"
	"github.com/vqiu25/inky/internal/database"
	"github.com/vqiu25/inky/internal/handlers"
	"github.com/vqiu25/inky/internal/middleware"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load(logger)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	if err := auth.Init(); err != nil {
		log.Fatalf("failed to initialize auth: %v", err)
	}
	database.ConnectDB()
	if err := cache.ConnectRedis(); err != nil {
		logger.Warnf("redis unavailable, action log disabled: %v", err)
	}

	mux := http.NewServeMux()

	// user endpoints
	mux.HandleFunc("/user/create", handlers.CreateUserHandler)
	mux.HandleFunc("/user/login", handlers.LoginHandler)
	mux.Handle("/user/stats", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.StatsHandler,
	)))

	// phrase pool endpoints
	mux.Handle("/phrases/create", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.CreatePhraseHandler,
	)))
	mux.Handle("/phrases/list", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.ListPhrasesHandler,
	)))
	mux.Handle("/phrases/choices", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.ChoicePhrasesHandler,
	)))

	// session websocket
	ss := handlers.NewSessionServer(cfg.Game, logger)
	mux.Handle("/session/ws", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.SessionWSHandler(logger, ss),
	)))

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
