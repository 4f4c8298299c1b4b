package notes

import (
	"context"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/MarcoPoloResearchLab/papyrus/internal/auth"
)

// testClock is a controllable clock for exercising update timestamps.
type testClock struct {
	current time.Time
}

func newTestClock() *testClock {
	return &testClock{current: time.Unix(1_700_000_000, 0).UTC()}
}

func (c *testClock) Now() time.Time {
	return c.current
}

func (c *testClock) Advance(d time.Duration) {
	c.current = c.current.Add(d)
}

func newTestService(testContext *testing.T, databaseName string) (*Service, *testClock) {
	testContext.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+databaseName+"?mode=memory&cache=shared"), &gorm.Config{TranslateError: true})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Note{}); err != nil {
		testContext.Fatalf("failed to migrate: %v", err)
	}

	clock := newTestClock()
	service, err := NewService(ServiceConfig{
		Database: db,
		Clock:    clock.Now,
		NoteIDs:  NewUUIDProvider(),
		ShareIDs: NewShareIDProvider(),
		Hasher:   auth.NewPasswordHasher(bcrypt.MinCost),
		Logger:   zap.NewNop(),
	})
	if err != nil {
		testContext.Fatalf("failed to build service: %v", err)
	}
	return service, clock
}

func mustCreate(testContext *testing.T, service *Service, request CreateRequest) Note {
	testContext.Helper()
	note, err := service.Create(context.Background(), request)
	if err != nil {
		testContext.Fatalf("unexpected create error: %v", err)
	}
	return note
}

func stringPtr(value string) *string {
	return &value
}

func boolPtr(value bool) *bool {
	return &value
}
