package server

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"demobet/internal/cache"
	"demobet/internal/database"
	"demobet/internal/game"
)

type FiberServer struct {
	*fiber.App

	db    database.Service
	cache cache.Service
	hub   *game.Hub
	games *game.Orchestrator
}

func New() *FiberServer {
	// Initialize database
	db := database.New()

	// Initialize Redis cache
	redisService := cache.New()
	if redisService == nil {
		log.Fatal("[SERVER] Redis is required for game functionality")
	}

	// Initialize game components
	hub := game.NewHub()
	orchestrator := game.NewOrchestrator(int32(getEnvAsInt("GAME_BASE_SEED", 1987)))

	server := &FiberServer{
		App: fiber.New(fiber.Config{
			ServerHeader:  "demobet",
			AppName:       "demobet",
			ReadTimeout:   10 * time.Second,
			WriteTimeout:  10 * time.Second,
			IdleTimeout:   120 * time.Second,
			StrictRouting: false,
		}),

		db:    db,
		cache: redisService,
		hub:   hub,
		games: orchestrator,
	}

	// Lifecycle events fan out to websocket clients and into the
	// persistence collaborators.
	orchestrator.Subscribe(hub.BroadcastEvent)
	orchestrator.Subscribe(server.handleGameEvent)

	// Apply global middleware
	server.App.Use(recover.New())
	server.App.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
	}))

	// Start game components
	go hub.Run()

	crashParams := game.DefaultCrashParams()
	crashParams.LossBias = getEnvAsFloat("CRASH_LOSS_BIAS", crashParams.LossBias)
	crashParams.MaxMultiplier = getEnvAsFloat("CRASH_MAX_MULTIPLIER", crashParams.MaxMultiplier)
	if _, err := orchestrator.StartCrashGame(crashParams); err != nil {
		log.Printf("[SERVER] Failed to start crash game: %v", err)
	}

	colorParams := game.DefaultColorParams()
	colorParams.LossBias = getEnvAsFloat("COLOR_LOSS_BIAS", colorParams.LossBias)
	if _, err := orchestrator.StartColorGame(colorParams); err != nil {
		log.Printf("[SERVER] Failed to start color game: %v", err)
	}

	log.Println("[SERVER] Game schedulers started")

	return server
}

// handleGameEvent is the server's scheduler listener: every event snapshot
// goes to the Redis cache, completed rounds and their settled wagers go to
// postgres, and winning color wagers credit the demo wallet.
func (s *FiberServer) handleGameEvent(ev game.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.cache.StoreRoundSnapshot(ctx, string(ev.Kind), ev.Round.ID, ev.Round); err != nil {
		log.Printf("[SERVER] Failed to cache round %s: %v", ev.Round.ID, err)
	}

	if ev.Type != game.EventRoundDone {
		return
	}

	if err := s.db.SaveRound(ctx, ev.Round); err != nil {
		log.Printf("[SERVER] Failed to persist round %s: %v", ev.Round.ID, err)
	}
	if len(ev.Round.Wagers) > 0 {
		if err := s.db.SaveWagers(ctx, ev.Round.ID, ev.Round.Wagers); err != nil {
			log.Printf("[SERVER] Failed to persist wagers for round %s: %v", ev.Round.ID, err)
		}
	}

	for _, w := range ev.Round.Wagers {
		if w.Status != game.WagerWon || w.UserID == "" {
			continue
		}
		if _, err := s.cache.AdjustBalance(ctx, w.UserID, w.Payout); err != nil {
			log.Printf("[SERVER] Failed to credit user %s for wager %s: %v", w.UserID, w.ID, err)
		}
	}
}

// Shutdown gracefully shuts down the server and game components.
func (s *FiberServer) Shutdown() error {
	log.Println("[SERVER] Shutting down...")

	if s.games != nil {
		s.games.Stop()
	}
	if s.cache != nil {
		s.cache.Close()
	}
	if s.db != nil {
		s.db.Close()
	}

	return nil
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if floatVal, err := strconv.ParseFloat(val, 64); err == nil {
			return floatVal
		}
	}
	return defaultVal
}
