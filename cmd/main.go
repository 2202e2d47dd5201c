package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/almawell/alma/adapters"
	"github.com/almawell/alma/adapters/llm"
	almamongo "github.com/almawell/alma/adapters/mongo"
	"github.com/almawell/alma/adapters/stt"
	"github.com/almawell/alma/adapters/tts"
	"github.com/almawell/alma/domain/entities"
	"github.com/almawell/alma/domain/repositories"
	"github.com/almawell/alma/internal/api"
	"github.com/almawell/alma/internal/auth"
	"github.com/almawell/alma/internal/config"
	"github.com/almawell/alma/internal/websocket"
	"github.com/almawell/alma/usecase"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.Load(logger)

	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	secret := cfg.JWTSecret
	if secret == "" {
		logger.Warn("JWT_SECRET not set, using development secret")
		secret = "alma-dev-secret"
	}
	issuer, err := auth.NewTokenIssuer(secret, cfg.JWTTTL)
	if err != nil {
		logger.Fatal("Failed to create token issuer", zap.Error(err))
	}

	// Persistence: MongoDB when configured, in-memory otherwise.
	var sessionRepo repositories.SessionRepository
	if cfg.MongoURI != "" {
		client, err := almamongo.NewClient(cfg.MongoURI, cfg.MongoDatabase, logger)
		if err != nil {
			logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			client.Close(ctx)
		}()
		sessionRepo = almamongo.NewSessionRepository(client.Database)
	} else {
		logger.Warn("MONGODB_URI not set, sessions are kept in memory")
		sessionRepo = adapters.NewMemorySessionRepository()
	}

	userRepo := adapters.NewMemoryUserRepository()
	profileRepo := adapters.NewMemoryProfileRepository()
	seedDemoUser(userRepo, profileRepo, logger)

	// Completion provider: Gemini when credentialed, canned replies otherwise.
	var completer repositories.ChatCompleter
	if cfg.Gemini.APIKey != "" {
		gemini, err := llm.NewGemini(context.Background(), cfg.Gemini, logger)
		if err != nil {
			logger.Fatal("Failed to create Gemini client", zap.Error(err))
		}
		completer = gemini
	} else {
		logger.Warn("GEMINI_API_KEY not set, using mock completion provider")
		completer = &llm.MockCompleter{}
	}

	sessionConfig := usecase.Config{
		Language:    cfg.Language,
		VoiceGender: cfg.VoiceGender,
	}

	useGoogleSTT := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != ""
	if !useGoogleSTT {
		logger.Warn("GOOGLE_APPLICATION_CREDENTIALS not set, using mock recognizer")
	}
	if cfg.ElevenLabs.APIKey == "" {
		logger.Warn("ELEVEN_LABS_API_KEY not set, using mock synthesizer")
	}

	factory := func(ctx context.Context, sink tts.AudioSink) (*usecase.SessionService, websocket.AudioIngest, error) {
		var recognizer repositories.SpeechRecognizer
		var ingest websocket.AudioIngest
		if useGoogleSTT {
			google, err := stt.NewGoogleRecognizer(ctx, logger)
			if err != nil {
				return nil, nil, err
			}
			recognizer = google
			ingest = google
		} else {
			recognizer = stt.NewMockRecognizer(nil)
		}

		var synthesizer repositories.SpeechSynthesizer
		if cfg.ElevenLabs.APIKey != "" {
			eleven, err := tts.NewElevenLabsSynthesizer(cfg.ElevenLabs, sink, logger)
			if err != nil {
				return nil, nil, err
			}
			synthesizer = eleven
		} else {
			synthesizer = tts.NewMockSynthesizer(logger)
		}

		service := usecase.NewSessionService(
			completer, recognizer, synthesizer,
			sessionRepo, profileRepo, sessionConfig, logger,
		)
		return service, ingest, nil
	}

	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()

	hub := websocket.NewHub(factory, logger)
	go hub.Run(hubCtx)

	api.InitRoutes(e, hub, issuer, userRepo, sessionRepo, logger)

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("port", cfg.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// seedDemoUser registers the development login so the API is usable without a
// registration flow.
func seedDemoUser(users *adapters.MemoryUserRepository, profiles *adapters.MemoryProfileRepository, logger *zap.Logger) {
	user := &entities.User{Email: "demo@alma.local", Name: "Demo"}
	if err := users.Create(context.Background(), user); err != nil {
		logger.Warn("Failed to seed demo user", zap.Error(err))
		return
	}
	users.RegisterPassword(user.Email, "demo")
	profiles.Set(entities.Profile{UserID: user.ID, Nickname: "Demo", AssistantName: "Alma"})
	logger.Info("Demo user seeded", zap.String("email", user.Email))
}
