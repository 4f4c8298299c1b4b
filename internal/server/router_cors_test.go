package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestCORSPreflightAllowsAuthorizationHeader(testContext *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newTestHandler(testContext, "router_cors", staticHealth{available: true})

	request := httptest.NewRequest(http.MethodOptions, "/notes", http.NoBody)
	request.Header.Set("Origin", "https://app.example.com")
	request.Header.Set("Access-Control-Request-Method", http.MethodGet)
	request.Header.Set("Access-Control-Request-Headers", "Authorization")

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusNoContent {
		testContext.Fatalf("expected status %d, got %d", http.StatusNoContent, recorder.Code)
	}

	allowHeaders := recorder.Header().Get("Access-Control-Allow-Headers")
	if !strings.Contains(strings.ToLower(allowHeaders), "authorization") {
		testContext.Fatalf("expected Access-Control-Allow-Headers to include Authorization, got %q", allowHeaders)
	}
}
