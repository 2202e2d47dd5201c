package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/almawell/alma/adapters"
	"github.com/almawell/alma/domain/entities"
	"github.com/almawell/alma/internal/auth"
)

func setupTestServer(t *testing.T) (*echo.Echo, *auth.TokenIssuer, *adapters.MemoryUserRepository, *adapters.MemorySessionRepository) {
	t.Helper()

	issuer, err := auth.NewTokenIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer failed: %v", err)
	}

	users := adapters.NewMemoryUserRepository()
	sessions := adapters.NewMemorySessionRepository()

	e := echo.New()
	InitRoutes(e, nil, issuer, users, sessions, zap.NewNop())
	return e, issuer, users, sessions
}

func TestHealthEndpoint(t *testing.T) {
	e, _, _, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
}

func TestUserLogin(t *testing.T) {
	e, issuer, users, _ := setupTestServer(t)

	user := &entities.User{Email: "ana@example.com", Name: "Ana"}
	if err := users.Create(context.Background(), user); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	users.RegisterPassword("ana@example.com", "secret")

	body := `{"email":"ana@example.com","password":"secret"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid response: %v", err)
	}
	if resp.UserID != user.ID {
		t.Errorf("Expected user ID %s, got %s", user.ID, resp.UserID)
	}
	claims, err := issuer.ValidateToken(resp.Token)
	if err != nil || claims.UserID != user.ID {
		t.Errorf("Returned token does not validate: %v", err)
	}
}

func TestUserLoginRejectsBadCredentials(t *testing.T) {
	e, _, users, _ := setupTestServer(t)

	users.Create(context.Background(), &entities.User{Email: "ana@example.com", Name: "Ana"})
	users.RegisterPassword("ana@example.com", "secret")

	body := `{"email":"ana@example.com","password":"wrong"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", rec.Code)
	}
}

func TestListSessions(t *testing.T) {
	e, issuer, _, sessions := setupTestServer(t)

	record := entities.NewSessionRecord("user-1", time.Now())
	record.Finalize(entities.DefaultAnalysis(), entities.DefaultTasks(), []string{entities.DefaultExercise})
	if err := sessions.Save(context.Background(), record); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	token, _ := issuer.GenerateUserToken("user-1")
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp SessionsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid response: %v", err)
	}
	if len(resp.Sessions) != 1 || resp.Sessions[0].UserID != "user-1" {
		t.Errorf("Unexpected sessions payload: %+v", resp.Sessions)
	}
}

func TestListSessionsRequiresToken(t *testing.T) {
	e, _, _, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", rec.Code)
	}
}

func TestWebsocketRejectsMissingToken(t *testing.T) {
	e, _, _, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", rec.Code)
	}
}

func TestWebsocketAcceptsQueryToken(t *testing.T) {
	_, issuer, _, _ := setupTestServer(t)

	token, _ := issuer.GenerateUserToken("user-1")
	req := httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)

	e := echo.New()
	c := e.NewContext(req, httptest.NewRecorder())
	claims, errResp := authenticate(c, issuer)
	if errResp != nil {
		t.Fatalf("Query token rejected: %+v", errResp)
	}
	if claims.UserID != "user-1" {
		t.Errorf("Unexpected user ID: %s", claims.UserID)
	}
}
