package server

import (
	"context"
	"net/http"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/MarcoPoloResearchLab/papyrus/internal/accounts"
	"github.com/MarcoPoloResearchLab/papyrus/internal/auth"
	"github.com/MarcoPoloResearchLab/papyrus/internal/notes"
)

const testSigningSecret = "router-test-secret"

type staticHealth struct {
	available bool
}

func (h staticHealth) Available(context.Context) bool {
	return h.available
}

func newTestHandler(testContext *testing.T, databaseName string, health StoreHealth) (http.Handler, *auth.TokenIssuer) {
	testContext.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+databaseName+"?mode=memory&cache=shared"), &gorm.Config{TranslateError: true})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&accounts.Account{}, &notes.Note{}); err != nil {
		testContext.Fatalf("failed to migrate: %v", err)
	}

	hasher := auth.NewPasswordHasher(bcrypt.MinCost)
	tokenIssuer := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(testSigningSecret),
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

	handler, err := NewHTTPHandler(Dependencies{
		Accounts:    accountsService,
		Notes:       notesService,
		Credentials: tokenIssuer,
		Health:      health,
		Logger:      zap.NewNop(),
	})
	if err != nil {
		testContext.Fatalf("failed to build handler: %v", err)
	}
	return handler, tokenIssuer
}
