package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/papyrus/internal/accounts"
	"github.com/MarcoPoloResearchLab/papyrus/internal/auth"
	"github.com/MarcoPoloResearchLab/papyrus/internal/notes"
)

const identityContextKey = "papyrus_identity"

const guestLimitMessage = "guests may create at most 10 notes, please sign in to create more"

var (
	errMissingCredentialManager = errors.New("credential manager dependency required")
	errMissingAccountsService   = errors.New("accounts service dependency required")
	errMissingNotesService      = errors.New("notes service dependency required")
	errMissingStoreHealth       = errors.New("store health dependency required")
	errInvalidAuthorization     = errors.New("authorization header missing or invalid")
)

// CredentialManager issues and resolves bearer credentials.
type CredentialManager interface {
	IssueAccountCredential(accountID string) (string, error)
	IssueGuestCredential() (string, string, error)
	Resolve(token string) (auth.Identity, error)
}

// StoreHealth reports whether the backing store is reachable.
type StoreHealth interface {
	Available(ctx context.Context) bool
}

// Dependencies wires the HTTP surface to its collaborators.
type Dependencies struct {
	Accounts    *accounts.Service
	Notes       *notes.Service
	Credentials CredentialManager
	Health      StoreHealth
	Logger      *zap.Logger
}

// NewHTTPHandler builds the gin handler exposing the notes API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Credentials == nil {
		return nil, errMissingCredentialManager
	}
	if deps.Accounts == nil {
		return nil, errMissingAccountsService
	}
	if deps.Notes == nil {
		return nil, errMissingNotesService
	}
	if deps.Health == nil {
		return nil, errMissingStoreHealth
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		accounts:    deps.Accounts,
		notes:       deps.Notes,
		credentials: deps.Credentials,
		health:      deps.Health,
		logger:      logger,
	}

	router.GET("/guest/token", handler.handleGuestToken)

	stored := router.Group("/")
	stored.Use(handler.requireStore)
	stored.POST("/auth/register", handler.handleRegister)
	stored.POST("/auth/login", handler.handleLogin)
	stored.POST("/notes", handler.resolveIdentity, handler.handleCreateNote)
	stored.GET("/notes", handler.requireIdentity, handler.handleListNotes)
	stored.PUT("/notes/:id", handler.handleUpdateNote)
	stored.DELETE("/notes/:id", handler.handleDeleteNote)
	stored.GET("/notes/share/:shareId", handler.handleReadShared)
	stored.POST("/notes/share/:shareId/verify", handler.handleVerifyShared)
	stored.PUT("/notes/share/:shareId", handler.handleEditShared)

	return router, nil
}

type httpHandler struct {
	accounts    *accounts.Service
	notes       *notes.Service
	credentials CredentialManager
	health      StoreHealth
	logger      *zap.Logger
}

type credentialsPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *httpHandler) handleRegister(c *gin.Context) {
	var request credentialsPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_fields"})
		return
	}

	accountID, err := h.accounts.Register(c.Request.Context(), request.Email, request.Password)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": accountID})
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request credentialsPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_fields"})
		return
	}

	account, err := h.accounts.Authenticate(c.Request.Context(), request.Email, request.Password)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	token, err := h.credentials.IssueAccountCredential(account.ID)
	if err != nil {
		h.logger.Error("failed to issue account credential", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (h *httpHandler) handleGuestToken(c *gin.Context) {
	token, guestID, err := h.credentials.IssueGuestCredential()
	if err != nil {
		h.logger.Error("failed to issue guest credential", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "guestId": guestID})
}

type createNotePayload struct {
	Title          string `json:"title"`
	Content        string `json:"content"`
	ContentType    string `json:"contentType"`
	IsPublic       *bool  `json:"isPublic"`
	Password       string `json:"password"`
	EditorPassword string `json:"editorPassword"`
	Folder         string `json:"folder"`
}

func (h *httpHandler) handleCreateNote(c *gin.Context) {
	var request createNotePayload
	if c.Request.Body != nil && c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing_fields"})
			return
		}
	}

	note, err := h.notes.Create(c.Request.Context(), notes.CreateRequest{
		Caller:       h.callerIdentity(c),
		Title:        request.Title,
		Content:      request.Content,
		ContentType:  request.ContentType,
		IsPublic:     request.IsPublic,
		ViewPassword: request.Password,
		EditPassword: request.EditorPassword,
		Folder:       request.Folder,
	})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, notePayloadFrom(note))
}

func (h *httpHandler) handleListNotes(c *gin.Context) {
	caller := h.callerIdentity(c)
	if caller.IsAnonymous() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	results, err := h.notes.List(c.Request.Context(), caller)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	payload := make([]notePayload, 0, len(results))
	for _, note := range results {
		payload = append(payload, notePayloadFrom(note))
	}
	c.JSON(http.StatusOK, payload)
}

type updateNotePayload struct {
	Title          *string `json:"title"`
	Content        *string `json:"content"`
	ContentType    *string `json:"contentType"`
	IsPublic       *bool   `json:"isPublic"`
	Password       *string `json:"password"`
	EditorPassword *string `json:"editorPassword"`
	Folder         *string `json:"folder"`
}

func (h *httpHandler) handleUpdateNote(c *gin.Context) {
	var request updateNotePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_fields"})
		return
	}

	note, err := h.notes.Update(c.Request.Context(), c.Param("id"), notes.UpdateRequest{
		Title:        request.Title,
		Content:      request.Content,
		ContentType:  request.ContentType,
		IsPublic:     request.IsPublic,
		ViewPassword: request.Password,
		EditPassword: request.EditorPassword,
		Folder:       request.Folder,
	})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, notePayloadFrom(note))
}

func (h *httpHandler) handleDeleteNote(c *gin.Context) {
	if err := h.notes.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *httpHandler) handleReadShared(c *gin.Context) {
	result, err := h.notes.ReadShared(c.Request.Context(), c.Param("shareId"))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	if result.RequiresPassword {
		c.JSON(http.StatusOK, gin.H{"requiresPassword": true})
		return
	}
	c.JSON(http.StatusOK, sharedViewPayloadFrom(result.View))
}

type verifySharedPayload struct {
	Password string `json:"password"`
}

func (h *httpHandler) handleVerifyShared(c *gin.Context) {
	var request verifySharedPayload
	if c.Request.Body != nil && c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing_fields"})
			return
		}
	}

	view, err := h.notes.VerifySharedPassword(c.Request.Context(), c.Param("shareId"), request.Password)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, sharedViewPayloadFrom(view))
}

type editSharedPayload struct {
	Title          string `json:"title"`
	Content        string `json:"content"`
	EditorPassword string `json:"editorPassword"`
}

func (h *httpHandler) handleEditShared(c *gin.Context) {
	var request editSharedPayload
	if c.Request.Body != nil && c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing_fields"})
			return
		}
	}

	err := h.notes.EditShared(c.Request.Context(), c.Param("shareId"), notes.EditSharedRequest{
		Title:        request.Title,
		Content:      request.Content,
		EditPassword: request.EditorPassword,
	})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// requireStore fast-fails every store-backed route while the database is unreachable.
func (h *httpHandler) requireStore(c *gin.Context) {
	if !h.health.Available(c.Request.Context()) {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "database_unavailable"})
		return
	}
	c.Next()
}

// requireIdentity rejects requests without a resolvable bearer credential.
func (h *httpHandler) requireIdentity(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	identity, err := h.credentials.Resolve(token)
	if err != nil {
		h.logger.Warn("credential resolution failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(identityContextKey, identity)
	c.Next()
}

// resolveIdentity resolves a bearer credential when present and falls open to
// an anonymous identity otherwise, for routes that accept anonymous callers.
func (h *httpHandler) resolveIdentity(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if token != "" {
			identity, err := h.credentials.Resolve(token)
			if err == nil {
				c.Set(identityContextKey, identity)
				c.Next()
				return
			}
			h.logger.Warn("credential resolution failed", zap.Error(err))
		}
	}
	c.Set(identityContextKey, auth.AnonymousIdentity())
	c.Next()
}

func (h *httpHandler) callerIdentity(c *gin.Context) auth.Identity {
	value, exists := c.Get(identityContextKey)
	if !exists {
		return auth.AnonymousIdentity()
	}
	identity, ok := value.(auth.Identity)
	if !ok {
		return auth.AnonymousIdentity()
	}
	return identity
}

func (h *httpHandler) writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, accounts.ErrInvalidInput), errors.Is(err, notes.ErrInvalidContentType):
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_fields"})
	case errors.Is(err, accounts.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "email_exists"})
	case errors.Is(err, accounts.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials"})
	case errors.Is(err, notes.ErrIdentityRequired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	case errors.Is(err, notes.ErrInvalidViewPassword):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_password"})
	case errors.Is(err, notes.ErrInvalidEditPassword):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_editor_password"})
	case errors.Is(err, notes.ErrNoteNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, notes.ErrGuestLimitReached):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "guest_limit", "message": guestLimitMessage})
	default:
		h.logger.Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
	}
}
