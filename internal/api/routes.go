// Package api exposes the REST surface: login, session history, and the
// websocket upgrade.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/almawell/alma/domain/repositories"
	"github.com/almawell/alma/internal/auth"
	"github.com/almawell/alma/internal/websocket"
)

const historyLimit = 50

// InitRoutes initializes all API routes
func InitRoutes(
	e *echo.Echo,
	hub *websocket.Hub,
	issuer *auth.TokenIssuer,
	users repositories.UserRepository,
	sessions repositories.SessionRepository,
	logger *zap.Logger,
) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "alma-server",
		})
	})

	v1 := e.Group("/api/v1")

	v1.POST("/users/login", func(c echo.Context) error {
		return userLogin(c, issuer, users, logger)
	})

	v1.GET("/sessions", func(c echo.Context) error {
		return listSessions(c, issuer, sessions, logger)
	})

	e.GET("/ws", func(c echo.Context) error {
		return websocketWithAuth(hub, c, issuer, logger)
	})
}

func userLogin(c echo.Context, issuer *auth.TokenIssuer, users repositories.UserRepository, logger *zap.Logger) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		logger.Error("Failed to bind login request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Email and password are required",
		})
	}

	user, err := users.ValidateCredentials(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		logger.Warn("User authentication failed", zap.String("email", req.Email))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "authentication_failed",
			Message: "Invalid credentials",
		})
	}

	token, err := issuer.GenerateUserToken(user.ID)
	if err != nil {
		logger.Error("Failed to generate user token", zap.String("userId", user.ID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate authentication token",
		})
	}

	logger.Info("User authenticated", zap.String("userId", user.ID))
	return c.JSON(http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(7 * 24 * time.Hour),
		UserID:    user.ID,
	})
}

func listSessions(c echo.Context, issuer *auth.TokenIssuer, sessions repositories.SessionRepository, logger *zap.Logger) error {
	claims, errResp := authenticate(c, issuer)
	if errResp != nil {
		return c.JSON(http.StatusUnauthorized, errResp)
	}

	records, err := sessions.ListByUser(c.Request().Context(), claims.UserID, historyLimit)
	if err != nil {
		logger.Error("Failed to list sessions", zap.String("userId", claims.UserID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to load session history",
		})
	}
	return c.JSON(http.StatusOK, SessionsResponse{Sessions: records})
}

// websocketWithAuth validates the token and hands the upgrade to the hub
func websocketWithAuth(hub *websocket.Hub, c echo.Context, issuer *auth.TokenIssuer, logger *zap.Logger) error {
	claims, errResp := authenticate(c, issuer)
	if errResp != nil {
		logger.Warn("WebSocket connection rejected", zap.String("error", errResp.Error))
		return c.JSON(http.StatusUnauthorized, errResp)
	}

	logger.Info("WebSocket connection authenticated", zap.String("userId", claims.UserID))
	return websocket.HandleWebSocket(hub, c, claims.UserID, logger)
}

// authenticate extracts and validates the bearer token. Browsers cannot set
// headers on websocket upgrades, so a token query parameter is accepted too.
func authenticate(c echo.Context, issuer *auth.TokenIssuer) (*auth.JWTClaims, *ErrorResponse) {
	var token string
	if header := c.Request().Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		token = strings.TrimPrefix(header, "Bearer ")
	}
	if token == "" {
		token = c.QueryParam("token")
	}
	if token == "" {
		return nil, &ErrorResponse{
			Error:   "missing_token",
			Message: "JWT token is required",
		}
	}

	claims, err := issuer.ValidateToken(token)
	if err != nil {
		return nil, &ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired JWT token",
		}
	}
	return claims, nil
}
