package server

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"demobet/internal/game"
)

const maxSimulationCount = 10000

type simulateRequest struct {
	Count  int             `json:"count"`
	Seed   int32           `json:"seed"`
	Params game.GameParams `json:"params"`
}

// Game lifecycle handlers

func (s *FiberServer) startCrashHandler(c *fiber.Ctx) error {
	var params game.GameParams
	if err := c.BodyParser(&params); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	applied, err := s.games.StartCrashGame(params)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"kind":   game.GameKindCrash,
		"params": applied,
	})
}

func (s *FiberServer) startColorHandler(c *fiber.Ctx) error {
	var params game.GameParams
	if err := c.BodyParser(&params); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	applied, err := s.games.StartColorGame(params)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"kind":   game.GameKindColor,
		"params": applied,
	})
}

// Read-only snapshot handlers

func (s *FiberServer) getRoundHandler(kind game.GameKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		snap, ok := s.games.CurrentRound(kind)
		if !ok {
			return c.Status(404).JSON(fiber.Map{
				"error": "No active game round",
			})
		}
		return c.JSON(snap)
	}
}

func (s *FiberServer) getHistoryHandler(kind game.GameKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit := c.QueryInt("limit", 20)

		// The engine keeps a bounded in-memory ring; postgres is the durable
		// record. ?source=db reads past the ring's capacity.
		if c.Query("source") == "db" && s.db != nil {
			rounds, err := s.db.RecentRounds(c.Context(), kind, limit)
			if err != nil {
				return c.Status(500).JSON(fiber.Map{
					"error": "Failed to load round history",
				})
			}
			return c.JSON(fiber.Map{
				"kind":   kind,
				"source": "db",
				"rounds": rounds,
			})
		}

		return c.JSON(fiber.Map{
			"kind":   kind,
			"rounds": s.games.RoundHistory(kind, limit),
		})
	}
}

func (s *FiberServer) getStatsHandler(kind game.GameKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"kind":  kind,
			"stats": s.games.Stats(kind),
		})
	}
}

// Simulation handlers (pure, no round side effects)

func (s *FiberServer) simulateCrashHandler(c *fiber.Ctx) error {
	var req simulateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Count <= 0 || req.Count > maxSimulationCount {
		return c.Status(400).JSON(fiber.Map{
			"error": fmt.Sprintf("Count must be between 1 and %d", maxSimulationCount),
		})
	}

	outcomes, err := s.games.SimulateCrash(req.Params, req.Seed, req.Count)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"count":    len(outcomes),
		"outcomes": outcomes,
	})
}

func (s *FiberServer) simulateColorHandler(c *fiber.Ctx) error {
	var req simulateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Count <= 0 || req.Count > maxSimulationCount {
		return c.Status(400).JSON(fiber.Map{
			"error": fmt.Sprintf("Count must be between 1 and %d", maxSimulationCount),
		})
	}

	outcomes, err := s.games.SimulateColor(req.Params, req.Seed, req.Count)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"count":    len(outcomes),
		"outcomes": outcomes,
	})
}

// Wager handlers

func (s *FiberServer) colorBetHandler(c *fiber.Ctx) error {
	var req game.ColorBetRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.UserID == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": "User ID is required",
		})
	}

	// Debit the demo wallet up front; refund if the engine rejects the bet.
	// The debit checks and withdraws in one atomic step, so concurrent bets
	// cannot both pass the balance check.
	newBalance, debited, err := s.cache.DebitBalance(c.Context(), req.UserID, req.Amount)
	if err != nil {
		return c.Status(500).JSON(game.ColorBetResponse{
			Success: false,
			Message: "Transaction failed",
		})
	}
	if !debited {
		return c.Status(400).JSON(game.ColorBetResponse{
			Success: false,
			Message: "Insufficient balance",
			Balance: newBalance,
		})
	}

	resp := s.games.PlaceColorBet(req)
	if !resp.Success {
		if _, err := s.cache.AdjustBalance(c.Context(), req.UserID, req.Amount); err != nil {
			log.Printf("[SERVER] Refund failed for user %s: %v", req.UserID, err)
		}
		return c.Status(400).JSON(resp)
	}

	resp.Balance = newBalance
	return c.JSON(resp)
}

func (s *FiberServer) validateCashoutHandler(c *fiber.Ctx) error {
	var req game.CashoutCheckRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	return c.JSON(s.games.ValidateCrashCashout(req))
}

func (s *FiberServer) validateColorBetHandler(c *fiber.Ctx) error {
	var req game.ColorBetRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	valid, message, previews := s.games.ValidateColorBet(req)
	return c.JSON(fiber.Map{
		"valid":    valid,
		"message":  message,
		"previews": previews,
	})
}

// Demo wallet handlers

func (s *FiberServer) getUserBalanceHandler(c *fiber.Ctx) error {
	userID := c.Params("userId")
	if userID == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": "User ID is required",
		})
	}

	balance, err := s.cache.GetBalance(c.Context(), userID)
	if err != nil {
		balance = 0.0
	}

	return c.JSON(fiber.Map{
		"user_id": userID,
		"balance": balance,
	})
}

func (s *FiberServer) setUserBalanceHandler(c *fiber.Ctx) error {
	userID := c.Params("userId")
	if userID == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": "User ID is required",
		})
	}

	var body struct {
		Balance float64 `json:"balance"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := s.cache.SetBalance(c.Context(), userID, body.Balance); err != nil {
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to set balance",
		})
	}

	return c.JSON(fiber.Map{
		"user_id": userID,
		"balance": body.Balance,
		"message": "Balance updated successfully",
	})
}

// gameWebSocketHandler handles WebSocket connections for the live round feed
func (s *FiberServer) gameWebSocketHandler(conn *websocket.Conn) {
	userID := conn.Query("user_id", "anonymous")

	log.Printf("[WS] New connection from user: %s", userID)

	client := s.hub.RegisterClient(conn, userID)

	// Send current state of both games
	snapshots := make(map[game.GameKind]game.RoundSnapshot)
	if snap, ok := s.games.CurrentRound(game.GameKindCrash); ok {
		snapshots[game.GameKindCrash] = snap
	}
	if snap, ok := s.games.CurrentRound(game.GameKindColor); ok {
		snapshots[game.GameKindColor] = snap
	}
	client.SendInitialState(snapshots)

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			log.Printf("[WS] Read error for user %s: %v", userID, err)
			s.hub.UnregisterClient(conn)
			break
		}

		if messageType != websocket.TextMessage {
			continue
		}

		var clientMsg map[string]interface{}
		if err := json.Unmarshal(message, &clientMsg); err != nil {
			continue
		}

		msgType, ok := clientMsg["type"].(string)
		if !ok {
			continue
		}

		switch msgType {
		case "color_bet":
			amount, _ := strconv.ParseFloat(fmt.Sprintf("%v", clientMsg["amount"]), 64)
			color := fmt.Sprintf("%v", clientMsg["color"])

			resp := s.games.PlaceColorBet(game.ColorBetRequest{
				UserID: userID,
				Color:  color,
				Amount: amount,
			})

			respJSON, _ := json.Marshal(resp)
			conn.WriteMessage(websocket.TextMessage, respJSON)

		case "ping":
			pongJSON, _ := json.Marshal(map[string]string{"type": "pong"})
			conn.WriteMessage(websocket.TextMessage, pongJSON)
		}
	}
}
