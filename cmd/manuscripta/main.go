package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"manuscripta/internal/api"
	"manuscripta/internal/cache"
	"manuscripta/internal/config"
	"manuscripta/internal/document"
	"manuscripta/internal/logger"
	"manuscripta/internal/prefetch"
	"manuscripta/internal/scene"
	"manuscripta/internal/session"
	"manuscripta/internal/telemetry"
)

const serviceName = "manuscripta"

func main() {
	// 1. Parse command-line arguments
	configFile := flag.String("c", "", "Path to the JSON config file (optional)")
	logLevel := flag.String("L", "", "Log level (error, warn, info, debug); overrides the config")
	listenAddr := flag.String("l", "", "HTTP control listen address; overrides the config")
	docFile := flag.String("f", "", "Text file to open at startup")
	flag.Parse()

	// 2. Load configuration
	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		logger.NewLogger("error").Errorf("Failed to load configuration: %v", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}

	// 3. Initialize logger
	var sinks []io.Writer
	if cfg.LogFile != "" {
		f, err := logger.OpenFile(cfg.LogFile)
		if err != nil {
			logger.NewLogger("error").Errorf("Failed to set up file logging: %v", err)
			os.Exit(1)
		}
		defer f.Close()
		sinks = append(sinks, f)
	}
	log := logger.NewLogger(cfg.LogLevel, sinks...)
	log.Infof("Starting Manuscripta player...")
	log.Infof("Log level set to: %s", cfg.LogLevel)
	log.Infof("Scene endpoint: %s", cfg.SceneEndpoint)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, serviceName, cfg.OTELEndpoint)
	if err != nil {
		log.Errorf("Failed to initialize tracing: %v", err)
		os.Exit(1)
	}

	// 4. Initialize services
	httpClient, err := scene.NewHTTPClient(cfg.ProxyURL)
	if err != nil {
		log.Errorf("Failed to build HTTP client: %v", err)
		os.Exit(1)
	}

	sceneClient, err := scene.NewClient(httpClient, log, scene.Options{
		Endpoint:  cfg.SceneEndpoint,
		UserAgent: cfg.UserAgent,
		Style:     cfg.Style,
		Timeout:   cfg.RequestTimeout,
	})
	if err != nil {
		log.Errorf("Failed to initialize scene client: %v", err)
		os.Exit(1)
	}

	imageClient := *httpClient
	imageClient.Timeout = cfg.RequestTimeout
	artifacts := cache.New(
		cache.NewDownloader(&imageClient, log, cfg.UserAgent, cfg.TempDir),
		log,
		cache.Options{Capacity: cfg.CacheCapacity},
	)
	defer artifacts.Close()

	coordinator := prefetch.New(sceneClient, artifacts, log, prefetch.Options{
		MaxInFlight:         cfg.MaxInFlight,
		RetryFailed:         cfg.RetryFailedScenes,
		ReportImageFailures: cfg.ReportImageFailures,
	})

	display := api.NewDisplay()
	sess := session.New(log, coordinator, display, session.Options{
		TickInterval: cfg.TickInterval,
		Paragraphs:   cfg.FrameParagraphs,
	})

	sessionDone := make(chan struct{})
	go func() {
		defer close(sessionDone)
		if err := sess.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Errorf("Session stopped: %v", err)
		}
	}()

	if *docFile != "" {
		text, err := document.Load(*docFile)
		if err != nil {
			log.Errorf("Failed to open document: %v", err)
			os.Exit(1)
		}
		if err := sess.Load(ctx, text); err != nil {
			log.Errorf("Failed to load document: %v", err)
			os.Exit(1)
		}
		log.Infof("Opened %s", *docFile)
	}

	// 5. Set up and run the HTTP control server with graceful shutdown
	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: api.New(sess, display, log),
	}

	go func() {
		log.Infof("Control server starting on %s", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("Could not listen on %s: %v", cfg.ListenAddr, err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Infof("Player is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Server shutdown failed: %v", err)
	}
	<-sessionDone
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warnf("Trace flush failed: %v", err)
	}

	log.Infof("Player exited gracefully")
}
