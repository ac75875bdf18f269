package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pashagolub/pgxmock/v3"
	"golang.org/x/crypto/bcrypt"
)

type registerResponse struct {
	User   User          `json:"user"`
	Tokens TokenResponse `json:"tokens"`
}

func newAuthApp(t *testing.T) (pgxmock.PgxPoolIface, *Service, *fiber.App) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	t.Cleanup(mock.Close)

	svc := NewService("secret", mock)
	app := fiber.New()
	RegisterRoutes(app.Group("/auth"), svc)
	return mock, svc, app
}

func postJSON(t *testing.T, app *fiber.App, path, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("%s: %v", path, err)
	}
	return resp
}

func expectSaveRefresh(mock pgxmock.PgxPoolIface, userID any) {
	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(pgxmock.AnyArg(), userID, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
}

func TestRegisterHandlerCoach(t *testing.T) {
	mock, _, app := newAuthApp(t)

	now := time.Now()
	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(pgxmock.AnyArg(), "coach@example.com", "coach", pgxmock.AnyArg(), "Ann", "Lee", true).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	expectSaveRefresh(mock, pgxmock.AnyArg())

	resp := postJSON(t, app, "/auth/register",
		`{"email":"coach@example.com","username":"coach","password":"pass","first_name":"Ann","last_name":"Lee","type":"coach"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status: %d", resp.StatusCode)
	}

	var body registerResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.User.Type != TypeCoach || body.User.ID == "" {
		t.Fatalf("unexpected user: %+v", body.User)
	}
	if body.Tokens.TokenType != "Bearer" || body.Tokens.ExpiresIn != int64(accessTokenTTL.Seconds()) {
		t.Fatalf("unexpected tokens: %+v", body.Tokens)
	}

	req := httptest.NewRequest(http.MethodGet, "/auth/jwt/verify", nil)
	req.Header.Set("Authorization", "Bearer "+body.Tokens.AccessToken)
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("verify: %v %v", err, resp)
	}
	var verified map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&verified); err != nil || verified["user_id"] != body.User.ID {
		t.Fatalf("verify returned %v, want %s", verified, body.User.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRegisterHandlerHidesPasswordHash(t *testing.T) {
	mock, _, app := newAuthApp(t)

	now := time.Now()
	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(pgxmock.AnyArg(), "ath@example.com", "ath", pgxmock.AnyArg(), "", "", false).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	expectSaveRefresh(mock, pgxmock.AnyArg())

	resp := postJSON(t, app, "/auth/register", `{"email":"ath@example.com","username":"ath","password":"pass"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status: %d", resp.StatusCode)
	}
	raw, _ := io.ReadAll(resp.Body)
	var body map[string]map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := body["user"]["password_hash"]; ok {
		t.Fatalf("password hash leaked: %s", raw)
	}
	if body["user"]["type"] != TypeAthlete {
		t.Fatalf("default type should be athlete: %s", raw)
	}
}

func TestRegisterHandlerRejects(t *testing.T) {
	cases := []struct {
		name string
		body string
		msg  string
	}{
		{"unknown type", `{"email":"a@example.com","username":"a","password":"p","type":"referee"}`, ErrUnknownUserType.Error()},
		{"malformed", `{bad`, "invalid payload"},
		{"missing password", `{"email":"a@example.com","username":"a"}`, "email, username, password required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mock, _, app := newAuthApp(t)

			resp := postJSON(t, app, "/auth/register", tc.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status: %d", resp.StatusCode)
			}
			if msg, _ := io.ReadAll(resp.Body); string(msg) != tc.msg {
				t.Fatalf("message %q, want %q", msg, tc.msg)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatalf("no query expected: %v", err)
			}
		})
	}
}

func TestLoginHandler(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("pass"), bcrypt.MinCost)
	cols := []string{"id", "email", "username", "password_hash", "first_name", "last_name", "is_staff", "created_at", "updated_at"}

	cases := []struct {
		name   string
		body   string
		expect func(mock pgxmock.PgxPoolIface)
		status int
	}{
		{
			name: "coach logs in",
			body: `{"email":"coach@example.com","password":"pass"}`,
			expect: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`FROM users WHERE email = \$1`).
					WithArgs("coach@example.com").
					WillReturnRows(pgxmock.NewRows(cols).AddRow("coach-1", "coach@example.com", "coach", string(hash), "", "", true, time.Now(), time.Now()))
				expectSaveRefresh(mock, "coach-1")
			},
			status: http.StatusOK,
		},
		{
			name: "wrong password",
			body: `{"email":"coach@example.com","password":"nope"}`,
			expect: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`FROM users WHERE email = \$1`).
					WithArgs("coach@example.com").
					WillReturnRows(pgxmock.NewRows(cols).AddRow("coach-1", "coach@example.com", "coach", string(hash), "", "", true, time.Now(), time.Now()))
			},
			status: http.StatusUnauthorized,
		},
		{
			name:   "missing password",
			body:   `{"email":"coach@example.com"}`,
			expect: func(pgxmock.PgxPoolIface) {},
			status: http.StatusBadRequest,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mock, _, app := newAuthApp(t)
			tc.expect(mock)

			resp := postJSON(t, app, "/auth/login", tc.body)
			if resp.StatusCode != tc.status {
				t.Fatalf("status %d, want %d", resp.StatusCode, tc.status)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatalf("expectations: %v", err)
			}
		})
	}
}

func TestRefreshHandler(t *testing.T) {
	mock, svc, app := newAuthApp(t)

	expectSaveRefresh(mock, "ath-1")
	issued, err := svc.GenerateTokens(context.Background(), "ath-1")
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}

	if resp := postJSON(t, app, "/auth/refresh", `{}`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty refresh: %d", resp.StatusCode)
	}
	if resp := postJSON(t, app, "/auth/refresh", `{"refresh_token":"not-a-jwt"}`); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("garbage refresh: %d", resp.StatusCode)
	}

	mock.ExpectQuery(`SELECT user_id, expires_at`).
		WithArgs(issued.RefreshToken).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "expires_at"}).AddRow("ath-1", time.Now().Add(time.Hour)))
	expectSaveRefresh(mock, "ath-1")

	resp := postJSON(t, app, "/auth/refresh", `{"refresh_token":"`+issued.RefreshToken+`"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh status: %d", resp.StatusCode)
	}
	var rotated TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&rotated); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rotated.RefreshToken == issued.RefreshToken {
		t.Fatalf("refresh must issue a new token")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestVerifyHandlerRejects(t *testing.T) {
	_, _, app := newAuthApp(t)

	for _, header := range []string{"", "Basic abc", "Bearer", "Bearer not-a-jwt"} {
		req := httptest.NewRequest(http.MethodGet, "/auth/jwt/verify", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, err := app.Test(req)
		if err != nil || resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("header %q: expected unauthorized, got %v %v", header, err, resp)
		}
	}

	if parseBearer("bearer tok") != "tok" {
		t.Fatalf("scheme should be case-insensitive")
	}
}
