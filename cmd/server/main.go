package main

import (
	"context"
	"flag"
	"net/http"

	"github.com/museworks/muse/internal/agent"
	"github.com/museworks/muse/internal/api"
	"github.com/museworks/muse/internal/config"
	"github.com/museworks/muse/internal/db"
	"github.com/museworks/muse/internal/gallery"
	"github.com/museworks/muse/internal/imagegen"
	"github.com/museworks/muse/internal/session"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	database, err := db.New(cfg.Storage.Path, logger)
	if err != nil {
		logger.Fatal("failed to initialize database",
			zap.Error(err),
			zap.String("dbPath", cfg.Storage.Path))
	}
	defer database.Close()

	registry := agent.NewRegistry(agent.Credentials{
		GoogleAPIKey: cfg.Providers.GoogleAPIKey,
		GroqAPIKey:   cfg.Providers.GroqAPIKey,
	}, logger)

	controller := session.New(database, registry, logger)
	if applied := controller.SelectModel(cfg.Models.Default); applied != cfg.Models.Default {
		logger.Warn("configured default model is unsupported",
			zap.String("configured", cfg.Models.Default),
			zap.String("using", applied))
	}

	// Image generation is optional; a missing key disables the feature but
	// leaves chat untouched.
	var generator api.Generator
	gen, err := imagegen.New(context.Background(), cfg.Providers.GoogleAPIKey, cfg.Images.Model, logger)
	if err != nil {
		logger.Warn("image generation disabled", zap.Error(err))
	} else {
		generator = gen
	}

	store := gallery.NewStore()
	handler := api.NewHandler(controller, generator, store, logger)

	http.HandleFunc("/api/session", handler.GetSession)
	http.HandleFunc("/api/conversations", handler.Conversations)
	http.HandleFunc("/api/conversations/delete", handler.DeleteConversation)
	http.HandleFunc("/api/messages", handler.GetMessages)
	http.HandleFunc("/api/message", handler.HandleMessage)
	http.HandleFunc("/api/model", handler.SelectModel)
	http.HandleFunc("/api/page", handler.SetPage)
	http.HandleFunc("/api/images/generate", handler.GenerateImages)
	http.HandleFunc("/api/images", handler.GetImage)
	http.HandleFunc("/api/images/history", handler.GetImageHistory)

	fs := http.FileServer(http.Dir(cfg.Server.WebDir))
	http.Handle("/", fs)

	logger.Info("starting server", zap.String("listen", cfg.Server.Listen))
	if err := http.ListenAndServe(cfg.Server.Listen, nil); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
}
