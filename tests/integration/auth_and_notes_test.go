package integration_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/MarcoPoloResearchLab/papyrus/internal/accounts"
	"github.com/MarcoPoloResearchLab/papyrus/internal/auth"
	"github.com/MarcoPoloResearchLab/papyrus/internal/database"
	"github.com/MarcoPoloResearchLab/papyrus/internal/notes"
	"github.com/MarcoPoloResearchLab/papyrus/internal/server"
)

const (
	signingSecret   = "integration-secret"
	jsonContentType = "application/json"
)

func newAPIServer(testContext *testing.T) *httptest.Server {
	testContext.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file:integration_notes?mode=memory&cache=shared"), &gorm.Config{TranslateError: true})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&accounts.Account{}, &notes.Note{}); err != nil {
		testContext.Fatalf("failed to migrate: %v", err)
	}

	hasher := auth.NewPasswordHasher(bcrypt.MinCost)
	tokenIssuer := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(signingSecret),
		Issuer:        "papyrus-auth",
		Audience:      "papyrus-api",
	})

	accountsService, err := accounts.NewService(accounts.ServiceConfig{
		Database:   db,
		IDProvider: accounts.NewUUIDProvider(),
		Hasher:     hasher,
		Logger:     zap.NewNop(),
	})
	if err != nil {
		testContext.Fatalf("failed to build accounts service: %v", err)
	}

	notesService, err := notes.NewService(notes.ServiceConfig{
		Database: db,
		NoteIDs:  notes.NewUUIDProvider(),
		ShareIDs: notes.NewShareIDProvider(),
		Hasher:   hasher,
		Logger:   zap.NewNop(),
	})
	if err != nil {
		testContext.Fatalf("failed to build notes service: %v", err)
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Accounts:    accountsService,
		Notes:       notesService,
		Credentials: tokenIssuer,
		Health:      database.NewHealth(db),
		Logger:      zap.NewNop(),
	})
	if err != nil {
		testContext.Fatalf("failed to build handler: %v", err)
	}

	apiServer := httptest.NewServer(handler)
	testContext.Cleanup(apiServer.Close)
	return apiServer
}

func callAPI(testContext *testing.T, apiServer *httptest.Server, method, path, bearer string, body any) (int, map[string]any) {
	testContext.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			testContext.Fatalf("failed to encode request: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequest(method, apiServer.URL+path, reader)
	if err != nil {
		testContext.Fatalf("failed to build request: %v", err)
	}
	if body != nil {
		request.Header.Set("Content-Type", jsonContentType)
	}
	if bearer != "" {
		request.Header.Set("Authorization", "Bearer "+bearer)
	}

	response, err := apiServer.Client().Do(request)
	if err != nil {
		testContext.Fatalf("request failed: %v", err)
	}
	defer response.Body.Close()

	raw, err := io.ReadAll(response.Body)
	if err != nil {
		testContext.Fatalf("failed to read response: %v", err)
	}

	var payload map[string]any
	if len(raw) > 0 && raw[0] == '{' {
		if err := json.Unmarshal(raw, &payload); err != nil {
			testContext.Fatalf("failed to decode response %q: %v", string(raw), err)
		}
	}
	return response.StatusCode, payload
}

func TestAccountAndShareFlow(testContext *testing.T) {
	apiServer := newAPIServer(testContext)

	status, registered := callAPI(testContext, apiServer, http.MethodPost, "/auth/register", "",
		map[string]any{"email": "writer@example.com", "password": "hunter22"})
	if status != http.StatusCreated {
		testContext.Fatalf("expected created status, got %d", status)
	}
	if registered["id"] == "" || registered["id"] == nil {
		testContext.Fatal("expected an account id")
	}

	status, _ = callAPI(testContext, apiServer, http.MethodPost, "/auth/register", "",
		map[string]any{"email": "writer@example.com", "password": "other-pass"})
	if status != http.StatusConflict {
		testContext.Fatalf("expected conflict on duplicate email, got %d", status)
	}

	status, login := callAPI(testContext, apiServer, http.MethodPost, "/auth/login", "",
		map[string]any{"email": "writer@example.com", "password": "hunter22"})
	if status != http.StatusOK {
		testContext.Fatalf("expected ok status on login, got %d", status)
	}
	token, _ := login["token"].(string)
	if token == "" {
		testContext.Fatal("expected a bearer credential")
	}

	status, created := callAPI(testContext, apiServer, http.MethodPost, "/notes", token,
		map[string]any{"title": "meeting notes", "content": "agenda", "password": "view-pass", "editorPassword": "edit-pass"})
	if status != http.StatusCreated {
		testContext.Fatalf("expected created status, got %d", status)
	}
	shareID, _ := created["shareId"].(string)
	if shareID == "" {
		testContext.Fatal("expected a share id")
	}

	status, _ = callAPI(testContext, apiServer, http.MethodGet, "/notes", token, nil)
	if status != http.StatusOK {
		testContext.Fatalf("expected ok status on list, got %d", status)
	}

	status, gated := callAPI(testContext, apiServer, http.MethodGet, "/notes/share/"+shareID, "", nil)
	if status != http.StatusOK {
		testContext.Fatalf("expected ok status on gated read, got %d", status)
	}
	if gated["requiresPassword"] != true {
		testContext.Fatalf("expected password gate, got %v", gated)
	}

	status, _ = callAPI(testContext, apiServer, http.MethodPost, "/notes/share/"+shareID+"/verify", "",
		map[string]any{"password": "nope"})
	if status != http.StatusUnauthorized {
		testContext.Fatalf("expected unauthorized on wrong view password, got %d", status)
	}

	status, view := callAPI(testContext, apiServer, http.MethodPost, "/notes/share/"+shareID+"/verify", "",
		map[string]any{"password": "view-pass"})
	if status != http.StatusOK {
		testContext.Fatalf("expected ok status on verify, got %d", status)
	}
	if view["title"] != "meeting notes" || view["content"] != "agenda" {
		testContext.Fatalf("expected note fields to round trip, got %v", view)
	}

	status, _ = callAPI(testContext, apiServer, http.MethodPut, "/notes/share/"+shareID, "",
		map[string]any{"title": "hijacked", "editorPassword": "nope"})
	if status != http.StatusUnauthorized {
		testContext.Fatalf("expected unauthorized on wrong editor password, got %d", status)
	}

	status, edited := callAPI(testContext, apiServer, http.MethodPut, "/notes/share/"+shareID, "",
		map[string]any{"title": "meeting notes v2", "editorPassword": "edit-pass"})
	if status != http.StatusOK {
		testContext.Fatalf("expected ok status on edit, got %d", status)
	}
	if edited["success"] != true {
		testContext.Fatalf("expected success body, got %v", edited)
	}

	status, reread := callAPI(testContext, apiServer, http.MethodPost, "/notes/share/"+shareID+"/verify", "",
		map[string]any{"password": "view-pass"})
	if status != http.StatusOK {
		testContext.Fatalf("expected ok status on reread, got %d", status)
	}
	if reread["title"] != "meeting notes v2" {
		testContext.Fatalf("expected edited title, got %v", reread)
	}
}

func TestGuestFlowAndQuota(testContext *testing.T) {
	apiServer := newAPIServer(testContext)

	status, guest := callAPI(testContext, apiServer, http.MethodGet, "/guest/token", "", nil)
	if status != http.StatusOK {
		testContext.Fatalf("expected ok status for guest token, got %d", status)
	}
	guestToken, _ := guest["token"].(string)
	guestID, _ := guest["guestId"].(string)
	if guestToken == "" || guestID == "" {
		testContext.Fatalf("expected guest credential, got %v", guest)
	}

	for i := 0; i < 10; i++ {
		status, _ := callAPI(testContext, apiServer, http.MethodPost, "/notes", guestToken,
			map[string]any{"title": "guest note"})
		if status != http.StatusCreated {
			testContext.Fatalf("expected created status on note %d, got %d", i+1, status)
		}
	}

	status, rejected := callAPI(testContext, apiServer, http.MethodPost, "/notes", guestToken,
		map[string]any{"title": "one too many"})
	if status != http.StatusTooManyRequests {
		testContext.Fatalf("expected too many requests status, got %d", status)
	}
	if rejected["error"] != "guest_limit" {
		testContext.Fatalf("expected guest_limit code, got %v", rejected)
	}

	status, otherGuest := callAPI(testContext, apiServer, http.MethodGet, "/guest/token", "", nil)
	if status != http.StatusOK {
		testContext.Fatalf("expected ok status for second guest token, got %d", status)
	}
	otherToken, _ := otherGuest["token"].(string)
	status, _ = callAPI(testContext, apiServer, http.MethodPost, "/notes", otherToken,
		map[string]any{"title": "fresh guest"})
	if status != http.StatusCreated {
		testContext.Fatalf("expected fresh guest to create, got %d", status)
	}

	status, _ = callAPI(testContext, apiServer, http.MethodGet, "/notes", "", nil)
	if status != http.StatusUnauthorized {
		testContext.Fatalf("expected unauthorized without bearer, got %d", status)
	}
}
