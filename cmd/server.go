package cmd

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"waveanalyzer/audio"
	"waveanalyzer/auth"
	"waveanalyzer/config"
	"waveanalyzer/frameloop"
	"waveanalyzer/handlers"
	"waveanalyzer/logger"
	"waveanalyzer/middleware"
	"waveanalyzer/services"
	"waveanalyzer/session"
	"waveanalyzer/spectral"
	"waveanalyzer/storage"
	"waveanalyzer/websocket"
)

// Server holds the wired services behind the HTTP API
type Server struct {
	Config    config.Config
	Hub       websocket.Hub
	Scheduler *frameloop.TickerScheduler
	Manager   *session.Manager
	JobQueue  services.JobQueue
	Files     services.FileService
	Store     storage.Store
	Auth      *auth.Client
	Router    *gin.Engine
}

// NewServer wires the services for cfg. Postgres is used when DATABASE_URL
// is set, an in-memory store otherwise.
func NewServer(ctx context.Context, cfg config.Config) (*Server, error) {
	var store storage.Store
	if cfg.DatabaseURL != "" {
		pg, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		store = pg
	} else {
		logger.Warnf("DATABASE_URL not set, projects are kept in memory")
		store = storage.NewMemoryStore()
	}

	var analyzer session.Analyzer
	if cfg.SpectralEndpoint != "" {
		analyzer = spectral.NewClient(cfg.SpectralEndpoint,
			spectral.WithTimeout(cfg.SpectralTimeout),
			spectral.WithRetries(cfg.SpectralRetries, time.Second),
			spectral.WithContract(int(math.Round(cfg.SpectralSampleRate)), int(math.Round(cfg.SpectralHopLength))),
		)
	} else {
		logger.Warnf("SPECTRAL_ENDPOINT not set, the frequency panel stays empty")
	}

	var authClient *auth.Client
	if cfg.AuthEndpoint != "" {
		authClient = auth.NewClient(cfg.AuthEndpoint)
	}

	hub := websocket.NewHub()
	scheduler := frameloop.NewTickerScheduler(cfg.FrameRate)

	manager := session.NewManager(session.Deps{
		Scheduler: scheduler,
		Decoder:   audio.NewDecoder(),
		Analyzer:  analyzer,
		Store:     store,
		Publisher: hub,
		Settings:  currentSettings,
		Chunks:    cfg.WaveformChunks,
	})

	// Decoding and analysis share the job timeout
	jobQueue := services.NewJobQueue(cfg.AnalysisJobs, cfg.SpectralTimeout*time.Duration(cfg.SpectralRetries+1)+time.Minute, hub)
	fileService := services.NewFileService(cfg.UploadLocation)

	s := &Server{
		Config:    cfg,
		Hub:       hub,
		Scheduler: scheduler,
		Manager:   manager,
		JobQueue:  jobQueue,
		Files:     fileService,
		Store:     store,
		Auth:      authClient,
	}
	s.Router = s.routes()
	return s, nil
}

func currentSettings() config.Settings {
	settings, err := config.LoadSettings()
	if err != nil {
		logger.Warnf("Could not load settings, using defaults: %v", err)
		return config.DefaultSettings()
	}
	return settings
}

// Start runs the hub, the frame scheduler and the analysis workers
func (s *Server) Start() {
	go s.Hub.Run()
	s.Scheduler.Start()
	s.JobQueue.Start()
}

// Shutdown stops the workers, closes every session and the store
func (s *Server) Shutdown(ctx context.Context) error {
	s.JobQueue.Stop()
	err := s.Manager.CloseAll(ctx)
	s.Scheduler.Stop()
	s.Hub.Stop()
	return errors.Join(err, s.Store.Close())
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// Apply middleware
	r.Use(middleware.CORS(s.Config.CORSOrigins))
	r.Use(middleware.Logging())
	r.Use(middleware.Security())

	healthHandler := handlers.NewHealthHandler(s.Config, s.Manager)
	settingsHandler := handlers.NewSettingsHandler(s.Manager)
	authHandler := handlers.NewAuthHandler(s.Auth)
	projectHandler := handlers.NewProjectHandler(s.Store, s.Files)
	sessionHandler := handlers.NewSessionHandler(s.Manager, s.JobQueue, s.Files)
	jobHandler := handlers.NewJobHandler(s.JobQueue, s.Manager, s.Hub)
	fileHandler := handlers.NewFileHandler(s.Files)

	// Health check endpoint
	r.GET("/health", healthHandler.HealthCheck)

	// Uploaded audio for the player
	r.GET(services.UploadURLPrefix+"*filepath", fileHandler.StreamFile)

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/status", healthHandler.APIStatus)

		authGroup := apiGroup.Group("/auth")
		{
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/signup", authHandler.Signup)
			authGroup.GET("/verify-email", authHandler.VerifyEmail)
			authGroup.POST("/refresh", authHandler.Refresh)
		}

		protected := apiGroup.Group("")
		protected.Use(middleware.RequireUser(s.Auth))

		protected.GET("/me", authHandler.Me)

		protected.GET("/settings", settingsHandler.GetSettings)
		protected.POST("/settings", settingsHandler.UpdateSettings)

		protected.GET("/files", fileHandler.ListFiles)

		projectsGroup := protected.Group("/projects")
		{
			projectsGroup.POST("", projectHandler.CreateProject)
			projectsGroup.GET("", projectHandler.ListProjects)
			projectsGroup.GET("/:id", projectHandler.GetProject)
			projectsGroup.DELETE("/:id", projectHandler.DeleteProject)
		}

		sessionsGroup := protected.Group("/sessions")
		{
			sessionsGroup.POST("", sessionHandler.CreateSession)
			sessionsGroup.GET("", sessionHandler.ListSessions)
			sessionsGroup.GET("/:id", sessionHandler.GetSession)
			sessionsGroup.DELETE("/:id", sessionHandler.DeleteSession)

			sessionsGroup.POST("/:id/track", sessionHandler.UploadTrack)
			sessionsGroup.GET("/:id/waveform", sessionHandler.GetWaveform)
			sessionsGroup.GET("/:id/grid", sessionHandler.GetGrid)

			sessionsGroup.POST("/:id/playback/play", sessionHandler.Play)
			sessionsGroup.POST("/:id/playback/pause", sessionHandler.Pause)
			sessionsGroup.POST("/:id/playback/seek", sessionHandler.Seek)
			sessionsGroup.POST("/:id/playback/rate", sessionHandler.SetRate)
			sessionsGroup.POST("/:id/playback/loop", sessionHandler.SetLoop)
			sessionsGroup.POST("/:id/playback/volume", sessionHandler.SetVolume)
			sessionsGroup.POST("/:id/playback/rewind", sessionHandler.Rewind)

			sessionsGroup.POST("/:id/viewport/zoom", sessionHandler.Zoom)
			sessionsGroup.POST("/:id/viewport/resize", sessionHandler.Resize)
			sessionsGroup.POST("/:id/viewport/keys", sessionHandler.Keys)

			sessionsGroup.POST("/:id/selection/press", sessionHandler.PressSelection)
			sessionsGroup.POST("/:id/selection/move", sessionHandler.MoveSelection)
			sessionsGroup.POST("/:id/selection/release", sessionHandler.ReleaseSelection)
			sessionsGroup.DELETE("/:id/selection", sessionHandler.ClearSelection)

			sessionsGroup.GET("/:id/markers", sessionHandler.ListMarkers)
			sessionsGroup.POST("/:id/markers", sessionHandler.CreateMarker)
			sessionsGroup.PATCH("/:id/markers/:markerId", sessionHandler.UpdateMarker)
			sessionsGroup.DELETE("/:id/markers/:markerId", sessionHandler.DeleteMarker)
		}

		jobsGroup := protected.Group("/jobs")
		{
			jobsGroup.GET("", jobHandler.GetAllJobs)
			jobsGroup.GET("/:jobId", jobHandler.GetJob)
			jobsGroup.DELETE("/:jobId", jobHandler.CancelJob)
		}

		// WebSocket endpoints for frames and job progress
		wsGroup := protected.Group("/ws")
		{
			wsGroup.GET("/sessions/:id", jobHandler.HandleSessionWebSocket)
			wsGroup.GET("/sessions", jobHandler.HandleWebSocketAllConnection)
		}
	}

	return r
}

// StartWebServer starts the web server and blocks until SIGINT or SIGTERM
func StartWebServer(port int) {
	cfg := config.Load()
	logger.SetLevel(cfg.LogLevel)

	// Set production mode if not specified
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	if os.Getenv("SERVER_PORT") == "" && port > 0 {
		cfg.Port = port
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := NewServer(ctx, cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize server: %v", err)
	}
	srv.Start()

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: srv.Router,
	}

	go func() {
		logger.Infof("Wave analyzer server starting on port %d", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown failed", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Service shutdown failed", err)
	}
}
