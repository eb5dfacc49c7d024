package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"backend-ridelink/internal/shared/apperr"

	"github.com/gofiber/fiber/v2"
	"github.com/pashagolub/pgxmock/v3"
)

func newAuthApp(mock pgxmock.PgxPoolIface) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: apperr.ErrorHandler})
	RegisterRoutes(app.Group("/auth"), NewService("test-secret", mock))
	return app
}

func postJSON(t *testing.T, app *fiber.App, path string, body any) *http.Response {
	t.Helper()
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request %s: %v", path, err)
	}
	return resp
}

func TestRegisterHandler(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(pgxmock.AnyArg(), "rider@example.com", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(time.Now(), time.Now()))
	mock.ExpectExec(`INSERT INTO profiles`).
		WithArgs(pgxmock.AnyArg(), "", "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	app := newAuthApp(mock)
	resp := postJSON(t, app, "/auth/register", RegisterRequest{Email: "rider@example.com", Password: "pass"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var env apperr.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil || !env.Success {
		t.Fatalf("expected success envelope: %v", err)
	}
}

func TestRegisterHandlerValidation(t *testing.T) {
	app := newAuthApp(nil)
	resp := postJSON(t, app, "/auth/register", RegisterRequest{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	var env apperr.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Success || env.Error == nil || env.Error.Code != apperr.CodeValidation {
		t.Fatalf("expected VALIDATION_ERROR envelope, got %+v", env)
	}
}

func TestLoginHandlerInvalidCredentials(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery(`SELECT id, email, password_hash, created_at, updated_at`).
		WithArgs("rider@example.com").
		WillReturnError(errQuery)

	app := newAuthApp(mock)
	resp := postJSON(t, app, "/auth/login", LoginRequest{Email: "rider@example.com", Password: "nope"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}

	var env apperr.Envelope
	_ = json.NewDecoder(resp.Body).Decode(&env)
	if env.Error == nil || env.Error.Code != apperr.CodeInvalidCredentials {
		t.Fatalf("expected INVALID_CREDENTIALS, got %+v", env.Error)
	}
}

func TestRefreshHandlerMissingToken(t *testing.T) {
	app := newAuthApp(nil)
	resp := postJSON(t, app, "/auth/refresh", RefreshRequest{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestLogoutHandler(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(`UPDATE refresh_tokens SET revoked_at`).
		WithArgs("tok-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	app := newAuthApp(mock)
	resp := postJSON(t, app, "/auth/logout", LogoutRequest{RefreshToken: "tok-1"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestSessionHandler(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(pgxmock.AnyArg(), "user-1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	svc := NewService("test-secret", mock)
	tokens, err := svc.GenerateTokens(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	app := fiber.New(fiber.Config{ErrorHandler: apperr.ErrorHandler})
	RegisterRoutes(app.Group("/auth"), svc)

	req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("session: %v %d", err, resp.StatusCode)
	}

	req = httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	resp, _ = app.Test(req)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token")
	}
}

func TestPasswordResetHandlers(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery(`SELECT id FROM users`).
		WithArgs("rider@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("user-1"))
	mock.ExpectExec(`INSERT INTO password_resets`).
		WithArgs(pgxmock.AnyArg(), "user-1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	app := newAuthApp(mock)
	resp := postJSON(t, app, "/auth/password/reset-request", ResetRequest{Email: "rider@example.com"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var env struct {
		Success bool `json:"success"`
		Data    struct {
			ResetToken string `json:"reset_token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil || env.Data.ResetToken == "" {
		t.Fatalf("expected reset token: %v", err)
	}

	mock.ExpectQuery(`SELECT user_id, expires_at`).
		WithArgs(env.Data.ResetToken).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "expires_at"}).
			AddRow("user-1", time.Now().Add(30*time.Minute)))
	mock.ExpectExec(`UPDATE users SET password_hash`).
		WithArgs("user-1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE password_resets SET used_at`).
		WithArgs(env.Data.ResetToken).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	resp = postJSON(t, app, "/auth/password/reset", ResetConfirmRequest{Token: env.Data.ResetToken, NewPassword: "fresh"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
