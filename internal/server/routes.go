package server

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/gofiber/contrib/websocket"

	"demobet/internal/game"
)

func (s *FiberServer) RegisterFiberRoutes() {
	// Apply CORS middleware
	s.App.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH",
		AllowHeaders:     "Accept,Authorization,Content-Type",
		AllowCredentials: false, // credentials require explicit origins
		MaxAge:           300,
	}))

	// Basic routes
	s.App.Get("/health", s.healthHandler)

	api := s.App.Group("/api/v1")

	// Crash game routes
	crash := api.Group("/crash")
	crash.Post("/start", s.startCrashHandler)
	crash.Get("/round", s.getRoundHandler(game.GameKindCrash))
	crash.Get("/history", s.getHistoryHandler(game.GameKindCrash))
	crash.Get("/stats", s.getStatsHandler(game.GameKindCrash))
	crash.Post("/simulate", s.simulateCrashHandler)
	crash.Post("/validate-cashout", s.validateCashoutHandler)

	// Color game routes
	color := api.Group("/color")
	color.Post("/start", s.startColorHandler)
	color.Get("/round", s.getRoundHandler(game.GameKindColor))
	color.Get("/history", s.getHistoryHandler(game.GameKindColor))
	color.Get("/stats", s.getStatsHandler(game.GameKindColor))
	color.Post("/simulate", s.simulateColorHandler)
	color.Post("/bet", s.colorBetHandler)
	color.Post("/validate-bet", s.validateColorBetHandler)

	// Demo wallet routes
	api.Get("/user/:userId/balance", s.getUserBalanceHandler)
	api.Post("/user/:userId/balance", s.setUserBalanceHandler)

	// WebSocket route
	s.App.Get("/ws", websocket.New(s.gameWebSocketHandler))
}

func (s *FiberServer) healthHandler(c *fiber.Ctx) error {
	health := fiber.Map{
		"database": s.db.Health(),
		"cache":    s.cache.Health(),
		"game": fiber.Map{
			"status":            "running",
			"connected_clients": s.hub.GetClientCount(),
		},
	}
	return c.JSON(health)
}
