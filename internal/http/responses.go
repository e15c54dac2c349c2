package http

import (
	"time"

	"noteshare/internal/domain"
	"noteshare/internal/storage"
)

type UserResponse struct {
	ID        string      `json:"id"`
	Username  string      `json:"username"`
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	CreatedAt string      `json:"createdAt"`
	UpdatedAt string      `json:"updatedAt"`
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type UploaderResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type RatingResponse struct {
	UserID string `json:"userId"`
	Rating int    `json:"rating"`
}

type NoteResponse struct {
	ID           string           `json:"id"`
	Title        string           `json:"title"`
	Subject      string           `json:"subject"`
	Description  string           `json:"description"`
	FileName     string           `json:"fileName"`
	OriginalName string           `json:"originalName"`
	MimeType     string           `json:"mimeType"`
	Size         int64            `json:"size"`
	UploadedBy   UploaderResponse `json:"uploadedBy"`
	Downloads    int64            `json:"downloads"`
	Rating       float64          `json:"rating"`
	Ratings      []RatingResponse `json:"ratings"`
	CreatedAt    string           `json:"createdAt"`
	UpdatedAt    string           `json:"updatedAt"`
}

type PaginationResponse struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

type NoteListResponse struct {
	Notes      []NoteResponse     `json:"notes"`
	Pagination PaginationResponse `json:"pagination"`
}

type StorageObjectResponse struct {
	Key          string  `json:"key"`
	Size         int64   `json:"size"`
	LastModified *string `json:"lastModified,omitempty"`
}

func userToResponse(user domain.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: user.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: user.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func noteToResponse(note domain.Note) NoteResponse {
	resp := NoteResponse{
		ID:           note.ID,
		Title:        note.Title,
		Subject:      note.Subject,
		Description:  note.Description,
		FileName:     note.FileName,
		OriginalName: note.OriginalName,
		MimeType:     note.MimeType,
		Size:         note.Size,
		UploadedBy: UploaderResponse{
			ID:       note.Uploader.ID,
			Username: note.Uploader.Username,
			Email:    note.Uploader.Email,
		},
		Downloads: note.Downloads,
		Rating:    note.Rating,
		Ratings:   make([]RatingResponse, len(note.Ratings)),
		CreatedAt: note.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: note.UpdatedAt.UTC().Format(time.RFC3339),
	}
	for i, r := range note.Ratings {
		resp.Ratings[i] = RatingResponse{UserID: r.UserID, Rating: r.Value}
	}
	return resp
}

func paginationToResponse(p domain.Pagination) PaginationResponse {
	return PaginationResponse{Page: p.Page, Limit: p.Limit, Total: p.Total, Pages: p.Pages}
}

func objectToResponse(obj storage.ObjectInfo) StorageObjectResponse {
	resp := StorageObjectResponse{
		Key:  obj.Key,
		Size: obj.Size,
	}
	if obj.LastModified != nil && !obj.LastModified.IsZero() {
		v := obj.LastModified.Format(time.RFC3339)
		resp.LastModified = &v
	}
	return resp
}
