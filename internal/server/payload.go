package server

import (
	"time"

	"github.com/MarcoPoloResearchLab/papyrus/internal/notes"
)

// notePayload is the owner-facing wire shape of a note. Stored secret hashes
// never leave the service; only their presence is exposed.
type notePayload struct {
	ID                string  `json:"id"`
	Title             string  `json:"title"`
	Content           string  `json:"content"`
	ContentType       string  `json:"contentType"`
	ShareID           string  `json:"shareId"`
	IsPublic          bool    `json:"isPublic"`
	HasPassword       bool    `json:"hasPassword"`
	HasEditorPassword bool    `json:"hasEditorPassword"`
	Folder            *string `json:"folder"`
	CreatedAt         string  `json:"createdAt"`
	UpdatedAt         string  `json:"updatedAt"`
}

func notePayloadFrom(note notes.Note) notePayload {
	return notePayload{
		ID:                note.ID,
		Title:             note.Title,
		Content:           note.Content,
		ContentType:       note.ContentType,
		ShareID:           note.ShareID,
		IsPublic:          note.IsPublic,
		HasPassword:       note.HasViewPassword(),
		HasEditorPassword: note.HasEditPassword(),
		Folder:            note.Folder,
		CreatedAt:         note.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:         note.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

type sharedViewPayload struct {
	Title             string `json:"title"`
	Content           string `json:"content"`
	ContentType       string `json:"contentType"`
	UpdatedAt         string `json:"updatedAt"`
	HasEditorPassword bool   `json:"hasEditorPassword"`
}

func sharedViewPayloadFrom(view notes.SharedView) sharedViewPayload {
	return sharedViewPayload{
		Title:             view.Title,
		Content:           view.Content,
		ContentType:       view.ContentType,
		UpdatedAt:         view.UpdatedAt.UTC().Format(time.RFC3339),
		HasEditorPassword: view.HasEditorPassword,
	}
}
