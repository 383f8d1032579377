package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cifraxlab/cifrax/internal/accounts"
	"github.com/cifraxlab/cifrax/internal/auth"
	"github.com/cifraxlab/cifrax/internal/backup"
	"github.com/cifraxlab/cifrax/internal/records"
	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testSigningSecret = "unit-test-signing-secret"

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&accounts.Account{}, &records.Group{}, &records.Combination{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	accountService, err := accounts.NewService(accounts.ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to create account service: %v", err)
	}
	recordService, err := records.NewService(records.ServiceConfig{
		Database:   db,
		IDProvider: records.NewUUIDProvider(),
	})
	if err != nil {
		t.Fatalf("failed to create record service: %v", err)
	}
	backupService, err := backup.NewService(backup.ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to create backup service: %v", err)
	}

	issuer := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(testSigningSecret),
		Issuer:        "cifrax-auth",
		Audience:      "cifrax-api",
		TokenTTL:      time.Hour,
	})

	handler, err := NewHTTPHandler(Dependencies{
		TokenManager: issuer,
		Accounts:     accountService,
		Records:      recordService,
		Backup:       backupService,
		Logger:       zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}
	return handler
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	request := httptest.NewRequest(method, path, reader)
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
}

// registerAccount creates an account and returns its session token. The first
// call per handler yields the administrator account.
func registerAccount(t *testing.T, handler http.Handler, email string) string {
	t.Helper()
	recorder := doJSON(t, handler, http.MethodPost, "/auth/register", "", credentialsPayload{
		Email:    email,
		Password: "correct-horse",
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("register failed with status %d: %s", recorder.Code, recorder.Body.String())
	}
	var response authResponsePayload
	decodeBody(t, recorder, &response)
	if response.AccessToken == "" {
		t.Fatal("register returned empty access token")
	}
	return response.AccessToken
}

func createCombination(t *testing.T, handler http.Handler, token, name string, numbers [3]int, groupID string) combinationPayload {
	t.Helper()
	recorder := doJSON(t, handler, http.MethodPost, "/combinations", token, combinationRequestPayload{
		Name:    name,
		Numbers: numbers,
		GroupID: groupID,
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("create combination failed with status %d: %s", recorder.Code, recorder.Body.String())
	}
	var created combinationPayload
	decodeBody(t, recorder, &created)
	return created
}

func createGroup(t *testing.T, handler http.Handler, token, name, color string) groupPayload {
	t.Helper()
	recorder := doJSON(t, handler, http.MethodPost, "/groups", token, groupRequestPayload{
		Name:  name,
		Color: color,
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("create group failed with status %d: %s", recorder.Code, recorder.Body.String())
	}
	var created groupPayload
	decodeBody(t, recorder, &created)
	return created
}
