package notes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarcoPoloResearchLab/papyrus/internal/auth"
)

const defaultGuestNoteLimit = 10

var (
	errMissingDatabase        = errors.New("database handle is required")
	errMissingNoteIDProvider  = errors.New("note id provider is required")
	errMissingShareIDProvider = errors.New("share id provider is required")
	errMissingHasher          = errors.New("password hasher is required")
	noOpLogger                = zap.NewNop()

	// ErrNoteNotFound indicates the target note does not exist.
	ErrNoteNotFound = errors.New("notes: note not found")
	// ErrIdentityRequired indicates an operation that rejects anonymous callers.
	ErrIdentityRequired = errors.New("notes: identity required")
	// ErrGuestLimitReached indicates the guest identity hit its note ceiling.
	ErrGuestLimitReached = errors.New("notes: guest note limit reached")
	// ErrInvalidViewPassword indicates the submitted view password does not verify.
	ErrInvalidViewPassword = errors.New("notes: invalid view password")
	// ErrInvalidEditPassword indicates the submitted edit password does not verify.
	ErrInvalidEditPassword = errors.New("notes: invalid edit password")
)

const (
	opServiceNew   = "notes.service.new"
	opCreateNote   = "notes.create"
	opListNotes    = "notes.list"
	opUpdateNote   = "notes.update"
	opDeleteNote   = "notes.delete"
	opReadShared   = "notes.read_shared"
	opVerifyShared = "notes.verify_shared"
	opEditShared   = "notes.edit_shared"
)

const (
	queryNoteID      = "id = ?"
	queryShareID     = "share_id = ?"
	queryAccountID   = "account_id = ?"
	queryGuestID     = "guest_id = ?"
	queryGuestQuota  = "guest_id = ? AND account_id IS NULL"
	orderUpdatedDesc = "updated_at DESC"
)

// ServiceError carries a stable machine-readable code alongside the cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code returns the stable error code.
func (e *ServiceError) Code() string {
	return e.code
}

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// ServiceConfig describes the dependencies of the notes service.
type ServiceConfig struct {
	Database       *gorm.DB
	Clock          func() time.Time
	NoteIDs        IDProvider
	ShareIDs       IDProvider
	Hasher         *auth.PasswordHasher
	GuestNoteLimit int
	Logger         *zap.Logger
}

// Service implements note persistence and the share-link access rules.
type Service struct {
	db             *gorm.DB
	clock          func() time.Time
	noteIDs        IDProvider
	shareIDs       IDProvider
	hasher         *auth.PasswordHasher
	guestNoteLimit int
	logger         *zap.Logger
}

// NewService constructs the notes service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.NoteIDs == nil {
		return nil, newServiceError(opServiceNew, "missing_note_id_provider", errMissingNoteIDProvider)
	}
	if cfg.ShareIDs == nil {
		return nil, newServiceError(opServiceNew, "missing_share_id_provider", errMissingShareIDProvider)
	}
	if cfg.Hasher == nil {
		return nil, newServiceError(opServiceNew, "missing_hasher", errMissingHasher)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	limit := cfg.GuestNoteLimit
	if limit <= 0 {
		limit = defaultGuestNoteLimit
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:             cfg.Database,
		clock:          clock,
		noteIDs:        cfg.NoteIDs,
		shareIDs:       cfg.ShareIDs,
		hasher:         cfg.Hasher,
		guestNoteLimit: limit,
		logger:         logger,
	}, nil
}

// CreateRequest describes the input for note creation. Ownership is resolved
// from the caller identity at creation time and never re-derived later.
type CreateRequest struct {
	Caller       auth.Identity
	Title        string
	Content      string
	ContentType  string
	IsPublic     *bool
	ViewPassword string
	EditPassword string
	Folder       string
}

// Create persists a new note owned by the caller identity. Guest callers are
// subject to the guest note quota; anonymous callers produce unclaimed notes.
func (s *Service) Create(ctx context.Context, request CreateRequest) (Note, error) {
	contentType, err := ParseContentType(request.ContentType)
	if err != nil {
		return Note{}, err
	}

	if request.Caller.IsGuest() {
		count, err := s.countGuestNotes(ctx, request.Caller.GuestID)
		if err != nil {
			s.logError(opCreateNote, "quota_count_failed", err, zap.String("guest_id", request.Caller.GuestID))
			return Note{}, newServiceError(opCreateNote, "quota_count_failed", err)
		}
		if count >= int64(s.guestNoteLimit) {
			return Note{}, ErrGuestLimitReached
		}
	}

	noteID, err := s.noteIDs.NewID()
	if err != nil {
		s.logError(opCreateNote, "id_generation_failed", err)
		return Note{}, newServiceError(opCreateNote, "id_generation_failed", err)
	}
	shareID, err := s.shareIDs.NewID()
	if err != nil {
		s.logError(opCreateNote, "share_id_generation_failed", err)
		return Note{}, newServiceError(opCreateNote, "share_id_generation_failed", err)
	}

	viewHash, err := s.hashSecret(request.ViewPassword)
	if err != nil {
		s.logError(opCreateNote, "view_password_hash_failed", err)
		return Note{}, newServiceError(opCreateNote, "view_password_hash_failed", err)
	}
	editHash, err := s.hashSecret(request.EditPassword)
	if err != nil {
		s.logError(opCreateNote, "edit_password_hash_failed", err)
		return Note{}, newServiceError(opCreateNote, "edit_password_hash_failed", err)
	}

	isPublic := true
	if request.IsPublic != nil {
		isPublic = *request.IsPublic
	}

	now := s.clock().UTC()
	note := Note{
		ID:               noteID,
		Title:            request.Title,
		Content:          request.Content,
		ContentType:      contentType.String(),
		ShareID:          shareID,
		IsPublic:         isPublic,
		ViewPasswordHash: viewHash,
		EditPasswordHash: editHash,
		Folder:           optionalString(request.Folder),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	switch {
	case request.Caller.IsAccount():
		accountID := request.Caller.AccountID
		note.AccountID = &accountID
	case request.Caller.IsGuest():
		guestID := request.Caller.GuestID
		note.GuestID = &guestID
	}

	if err := s.db.WithContext(ctx).Create(&note).Error; err != nil {
		s.logError(opCreateNote, "note_insert_failed", err, zap.String("note_id", noteID))
		return Note{}, newServiceError(opCreateNote, "note_insert_failed", err)
	}

	return note, nil
}

// List returns the caller's notes sorted by last update, newest first.
// Anonymous callers are rejected; one identity never sees another's notes.
func (s *Service) List(ctx context.Context, caller auth.Identity) ([]Note, error) {
	query := s.db.WithContext(ctx)
	switch {
	case caller.IsAccount():
		query = query.Where(queryAccountID, caller.AccountID)
	case caller.IsGuest():
		query = query.Where(queryGuestID, caller.GuestID)
	default:
		return nil, ErrIdentityRequired
	}

	var results []Note
	if err := query.Order(orderUpdatedDesc).Find(&results).Error; err != nil {
		s.logError(opListNotes, "query_failed", err)
		return nil, newServiceError(opListNotes, "query_failed", err)
	}
	return results, nil
}

// UpdateRequest describes a partial update. Nil fields are absent; a pointer to
// an empty string is an explicit clear, so clearing is distinguishable from
// omission on this path.
type UpdateRequest struct {
	Title        *string
	Content      *string
	ContentType  *string
	IsPublic     *bool
	ViewPassword *string
	EditPassword *string
	Folder       *string
}

// Update applies the supplied fields to the note and refreshes its update time.
func (s *Service) Update(ctx context.Context, noteID string, request UpdateRequest) (Note, error) {
	var note Note
	err := s.db.WithContext(ctx).Where(queryNoteID, noteID).Take(&note).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Note{}, ErrNoteNotFound
	}
	if err != nil {
		s.logError(opUpdateNote, "note_lookup_failed", err, zap.String("note_id", noteID))
		return Note{}, newServiceError(opUpdateNote, "note_lookup_failed", err)
	}

	updates := map[string]interface{}{
		"updated_at": s.clock().UTC(),
	}
	if request.Title != nil {
		updates["title"] = *request.Title
	}
	if request.Content != nil {
		updates["content"] = *request.Content
	}
	if request.ContentType != nil {
		contentType, err := ParseContentType(*request.ContentType)
		if err != nil {
			return Note{}, err
		}
		updates["content_type"] = contentType.String()
	}
	if request.IsPublic != nil {
		updates["is_public"] = *request.IsPublic
	}
	if request.Folder != nil {
		updates["folder"] = optionalString(*request.Folder)
	}
	if request.ViewPassword != nil {
		hash, err := s.hashSecret(*request.ViewPassword)
		if err != nil {
			s.logError(opUpdateNote, "view_password_hash_failed", err, zap.String("note_id", noteID))
			return Note{}, newServiceError(opUpdateNote, "view_password_hash_failed", err)
		}
		updates["view_password_hash"] = hash
	}
	if request.EditPassword != nil {
		hash, err := s.hashSecret(*request.EditPassword)
		if err != nil {
			s.logError(opUpdateNote, "edit_password_hash_failed", err, zap.String("note_id", noteID))
			return Note{}, newServiceError(opUpdateNote, "edit_password_hash_failed", err)
		}
		updates["edit_password_hash"] = hash
	}

	if err := s.db.WithContext(ctx).Model(&Note{}).Where(queryNoteID, noteID).Updates(updates).Error; err != nil {
		s.logError(opUpdateNote, "note_update_failed", err, zap.String("note_id", noteID))
		return Note{}, newServiceError(opUpdateNote, "note_update_failed", err)
	}

	var updated Note
	if err := s.db.WithContext(ctx).Where(queryNoteID, noteID).Take(&updated).Error; err != nil {
		s.logError(opUpdateNote, "note_reload_failed", err, zap.String("note_id", noteID))
		return Note{}, newServiceError(opUpdateNote, "note_reload_failed", err)
	}
	return updated, nil
}

// Delete removes the note. There is no soft delete or tombstone.
func (s *Service) Delete(ctx context.Context, noteID string) error {
	result := s.db.WithContext(ctx).Where(queryNoteID, noteID).Delete(&Note{})
	if result.Error != nil {
		s.logError(opDeleteNote, "note_delete_failed", result.Error, zap.String("note_id", noteID))
		return newServiceError(opDeleteNote, "note_delete_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNoteNotFound
	}
	return nil
}

// SharedView is the share-link read payload.
type SharedView struct {
	Title             string
	Content           string
	ContentType       string
	UpdatedAt         time.Time
	HasEditorPassword bool
}

// SharedReadResult is the outcome of a direct share-link read. When the note
// carries a view password the view is withheld and RequiresPassword is set.
type SharedReadResult struct {
	RequiresPassword bool
	View             SharedView
}

// ReadShared resolves a share identifier to its public or gated view.
func (s *Service) ReadShared(ctx context.Context, shareID string) (SharedReadResult, error) {
	note, err := s.findByShareID(ctx, opReadShared, shareID)
	if err != nil {
		return SharedReadResult{}, err
	}
	if note.HasViewPassword() {
		return SharedReadResult{RequiresPassword: true}, nil
	}
	return SharedReadResult{View: sharedView(note)}, nil
}

// VerifySharedPassword checks the submitted view password and returns the full
// view on a match. Notes without a view password succeed regardless of the
// submitted value.
func (s *Service) VerifySharedPassword(ctx context.Context, shareID, password string) (SharedView, error) {
	note, err := s.findByShareID(ctx, opVerifyShared, shareID)
	if err != nil {
		return SharedView{}, err
	}
	if note.HasViewPassword() && !s.hasher.Verify(*note.ViewPasswordHash, password) {
		return SharedView{}, ErrInvalidViewPassword
	}
	return sharedView(note), nil
}

// EditSharedRequest describes a collaborative edit through the share link.
type EditSharedRequest struct {
	Title        string
	Content      string
	EditPassword string
}

// EditShared applies a share-link edit. When the note carries an edit password
// the submitted one must verify; otherwise any caller may edit. Empty title or
// content submissions leave the stored value untouched, so a deliberate
// clear-to-empty is indistinguishable from omission on this path.
func (s *Service) EditShared(ctx context.Context, shareID string, request EditSharedRequest) error {
	note, err := s.findByShareID(ctx, opEditShared, shareID)
	if err != nil {
		return err
	}
	if note.HasEditPassword() && !s.hasher.Verify(*note.EditPasswordHash, request.EditPassword) {
		return ErrInvalidEditPassword
	}

	updates := map[string]interface{}{
		"updated_at": s.clock().UTC(),
	}
	if request.Title != "" {
		updates["title"] = request.Title
	}
	if request.Content != "" {
		updates["content"] = request.Content
	}

	if err := s.db.WithContext(ctx).Model(&Note{}).Where(queryShareID, shareID).Updates(updates).Error; err != nil {
		s.logError(opEditShared, "note_update_failed", err, zap.String("share_id", shareID))
		return newServiceError(opEditShared, "note_update_failed", err)
	}
	return nil
}

// countGuestNotes excludes rows that also carry an owning account, so any
// future re-ownership never counts against the guest quota.
func (s *Service) countGuestNotes(ctx context.Context, guestID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&Note{}).
		Where(queryGuestQuota, guestID).
		Count(&count).Error
	return count, err
}

func (s *Service) findByShareID(ctx context.Context, operation, shareID string) (Note, error) {
	var note Note
	err := s.db.WithContext(ctx).Where(queryShareID, shareID).Take(&note).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Note{}, ErrNoteNotFound
	}
	if err != nil {
		s.logError(operation, "share_lookup_failed", err, zap.String("share_id", shareID))
		return Note{}, newServiceError(operation, "share_lookup_failed", err)
	}
	return note, nil
}

func (s *Service) hashSecret(secret string) (*string, error) {
	if secret == "" {
		return nil, nil
	}
	hash, err := s.hasher.Hash(secret)
	if err != nil {
		return nil, err
	}
	return &hash, nil
}

func sharedView(note Note) SharedView {
	return SharedView{
		Title:             note.Title,
		Content:           note.Content,
		ContentType:       note.ContentType,
		UpdatedAt:         note.UpdatedAt,
		HasEditorPassword: note.HasEditPassword(),
	}
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("notes service error", attrs...)
}
