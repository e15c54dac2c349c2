package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"noteshare/internal/apperr"
	"noteshare/internal/domain"
	"noteshare/internal/metrics"
	"noteshare/internal/repository"
	"noteshare/internal/storage"
)

const (
	DefaultPage       = 1
	DefaultPageLimit  = 10
	MaxPageLimit      = 100
	DefaultMaxUpload  = 50 << 20
	maxTitleLength    = 200
	maxSubjectLength  = 100
	maxDescriptionLen = 2000
)

// DefaultAllowedExtensions lists the file types accepted for upload.
var DefaultAllowedExtensions = []string{
	".pdf", ".doc", ".docx", ".ppt", ".pptx", ".txt", ".jpg", ".jpeg", ".png", ".gif",
}

// UploadInput describes one uploaded file and the metadata submitted with it.
type UploadInput struct {
	Title        string
	Subject      string
	Description  string
	OriginalName string
	ContentType  string
	Size         int64
	Body         io.Reader
	UploaderID   string
}

// NoteList is one page of the catalog.
type NoteList struct {
	Notes      []domain.Note
	Pagination domain.Pagination
}

// Download is an opened note file ready to be streamed. Callers must close Body.
type Download struct {
	Note *domain.Note
	Body io.ReadCloser
	Size int64
}

// NoteService covers the upload, catalog and retrieval operations on notes.
type NoteService interface {
	Upload(ctx context.Context, in UploadInput) (*domain.Note, error)
	List(ctx context.Context, filter domain.NoteFilter, page domain.Page) (*NoteList, error)
	Get(ctx context.Context, id string) (*domain.Note, error)
	OpenDownload(ctx context.Context, id string) (*Download, error)
	Rate(ctx context.Context, noteID, userID string, value int) (*domain.Note, error)
	Delete(ctx context.Context, id string) error
	ListStoredObjects(ctx context.Context) ([]storage.ObjectInfo, error)
}

type NoteServiceConfig struct {
	MaxUploadSize     int64
	AllowedExtensions []string
	Logger            logrus.FieldLogger
	Now               func() time.Time
}

type noteService struct {
	notes   repository.NoteRepository
	users   repository.UserRepository
	storage storage.Service

	maxSize    int64
	extensions map[string]struct{}
	logger     logrus.FieldLogger
	now        func() time.Time
}

func NewNoteService(notes repository.NoteRepository, users repository.UserRepository, store storage.Service, cfg NoteServiceConfig) NoteService {
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = DefaultMaxUpload
	}
	if len(cfg.AllowedExtensions) == 0 {
		cfg.AllowedExtensions = DefaultAllowedExtensions
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	extensions := make(map[string]struct{}, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		extensions[ext] = struct{}{}
	}

	return &noteService{
		notes:      notes,
		users:      users,
		storage:    store,
		maxSize:    cfg.MaxUploadSize,
		extensions: extensions,
		logger:     cfg.Logger.WithField("component", "notes"),
		now:        cfg.Now,
	}
}

// Upload validates the input, writes the file under a generated key and
// persists the note. The stored file is removed again if the metadata cannot
// be saved.
func (s *noteService) Upload(ctx context.Context, in UploadInput) (note *domain.Note, err error) {
	defer func() { metrics.ObserveNoteOperation("upload", err) }()

	if in.Body == nil || strings.TrimSpace(in.OriginalName) == "" {
		return nil, apperr.Validation("no file uploaded")
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Subject = strings.TrimSpace(in.Subject)
	in.Description = strings.TrimSpace(in.Description)
	if fields := validateNoteFields(in); len(fields) > 0 {
		return nil, apperr.Validation("invalid input", fields...)
	}

	ext := strings.ToLower(filepath.Ext(in.OriginalName))
	if _, ok := s.extensions[ext]; !ok {
		return nil, apperr.Validation("invalid file type", apperr.FieldError{
			Field:   "file",
			Message: "only PDF, DOC, DOCX, PPT, PPTX, TXT, JPG, JPEG, PNG and GIF files are allowed",
		})
	}
	if in.Size > s.maxSize {
		return nil, s.tooLarge()
	}
	if in.UploaderID == "" {
		return nil, apperr.Unauthorized("invalid token")
	}

	uploader, err := s.users.GetByID(ctx, in.UploaderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.Unauthorized("invalid token")
		}
		return nil, apperr.Internal("get uploader", err)
	}

	key := storage.NewKey(in.OriginalName)
	contentType := detectContentType(in.ContentType, ext)

	limited := &io.LimitedReader{R: in.Body, N: s.maxSize + 1}
	written, err := s.storage.Put(ctx, key, limited, in.Size, contentType)
	if err != nil {
		return nil, apperr.Internal("store file", err)
	}
	if written > s.maxSize {
		s.removeBlob(key)
		return nil, s.tooLarge()
	}

	note = &domain.Note{
		Title:        in.Title,
		Subject:      in.Subject,
		Description:  in.Description,
		FileName:     key,
		OriginalName: filepath.Base(in.OriginalName),
		MimeType:     contentType,
		Size:         written,
		UploadedBy:   uploader.ID,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.notes.Create(ctx, note); err != nil {
		s.removeBlob(key)
		return nil, apperr.Internal("create note", err)
	}
	note.Uploader = domain.UserRef{ID: uploader.ID, Username: uploader.Username, Email: uploader.Email}

	metrics.UploadedBytesTotal.Add(float64(written))
	s.logger.WithFields(logrus.Fields{
		"note_id":  note.ID,
		"file":     key,
		"size":     written,
		"uploader": uploader.ID,
	}).Info("note uploaded")

	return note, nil
}

func (s *noteService) tooLarge() error {
	return apperr.Validation("file too large", apperr.FieldError{
		Field:   "file",
		Message: fmt.Sprintf("file must not exceed %d bytes", s.maxSize),
	})
}

func (s *noteService) removeBlob(key string) {
	// the request context may already be cancelled
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.storage.Delete(ctx, key); err != nil {
		s.logger.WithError(err).WithField("file", key).Warn("remove orphaned file")
	}
}

func validateNoteFields(in UploadInput) []apperr.FieldError {
	var fields []apperr.FieldError
	switch {
	case in.Title == "":
		fields = append(fields, apperr.FieldError{Field: "title", Message: "title is required"})
	case len(in.Title) > maxTitleLength:
		fields = append(fields, apperr.FieldError{Field: "title", Message: "title is too long"})
	}
	switch {
	case in.Subject == "":
		fields = append(fields, apperr.FieldError{Field: "subject", Message: "subject is required"})
	case len(in.Subject) > maxSubjectLength:
		fields = append(fields, apperr.FieldError{Field: "subject", Message: "subject is too long"})
	}
	if len(in.Description) > maxDescriptionLen {
		fields = append(fields, apperr.FieldError{Field: "description", Message: "description is too long"})
	}
	return fields
}

func (s *noteService) List(ctx context.Context, filter domain.NoteFilter, page domain.Page) (*NoteList, error) {
	page = NormalizePage(page)

	notes, total, err := s.notes.List(ctx, filter, page)
	if err != nil {
		return nil, apperr.Internal("list notes", err)
	}

	owners := make(map[string]domain.UserRef)
	for i := range notes {
		ref, err := s.resolveOwner(ctx, notes[i].UploadedBy, owners)
		if err != nil {
			return nil, err
		}
		notes[i].Uploader = ref
	}
	if notes == nil {
		notes = []domain.Note{}
	}

	return &NoteList{
		Notes:      notes,
		Pagination: domain.NewPagination(page, total),
	}, nil
}

func (s *noteService) Get(ctx context.Context, id string) (*domain.Note, error) {
	note, err := s.getNote(ctx, id)
	if err != nil {
		return nil, err
	}
	ref, err := s.resolveOwner(ctx, note.UploadedBy, nil)
	if err != nil {
		return nil, err
	}
	note.Uploader = ref
	return note, nil
}

// OpenDownload resolves the note, confirms its file is present, counts the
// download and hands back the open file. The counter is bumped before any
// byte is sent, so aborted transfers still count.
func (s *noteService) OpenDownload(ctx context.Context, id string) (dl *Download, err error) {
	defer func() { metrics.ObserveNoteOperation("download", err) }()

	note, err := s.getNote(ctx, id)
	if err != nil {
		return nil, err
	}

	body, info, err := s.storage.Open(ctx, note.FileName)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			s.logger.WithFields(logrus.Fields{"note_id": note.ID, "file": note.FileName}).
				Warn("note file missing from storage")
			return nil, apperr.NotFound("file not found")
		}
		return nil, apperr.Internal("open file", err)
	}

	if err := s.notes.IncrementDownloads(ctx, note.ID); err != nil {
		body.Close()
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("note not found")
		}
		return nil, apperr.Internal("increment downloads", err)
	}
	note.Downloads++

	size := info.Size
	if size <= 0 {
		size = note.Size
	}
	return &Download{Note: note, Body: body, Size: size}, nil
}

func (s *noteService) Rate(ctx context.Context, noteID, userID string, value int) (note *domain.Note, err error) {
	defer func() { metrics.ObserveNoteOperation("rate", err) }()

	if value < domain.MinRating || value > domain.MaxRating {
		return nil, apperr.Validation("invalid input", apperr.FieldError{Field: "rating", Message: "rating must be between 1 and 5"})
	}
	note, err = s.notes.UpsertRating(ctx, noteID, userID, value)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("note not found")
		}
		return nil, apperr.Internal("rate note", err)
	}
	ref, err := s.resolveOwner(ctx, note.UploadedBy, nil)
	if err != nil {
		return nil, err
	}
	note.Uploader = ref
	return note, nil
}

// Delete removes the note metadata and then its file. A file that cannot be
// removed is logged and left for the operator.
func (s *noteService) Delete(ctx context.Context, id string) (err error) {
	defer func() { metrics.ObserveNoteOperation("delete", err) }()

	note, err := s.getNote(ctx, id)
	if err != nil {
		return err
	}
	if err := s.notes.Delete(ctx, note.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("note not found")
		}
		return apperr.Internal("delete note", err)
	}
	if err := s.storage.Delete(ctx, note.FileName); err != nil {
		s.logger.WithError(err).WithField("file", note.FileName).Warn("delete note file")
	}
	s.logger.WithField("note_id", note.ID).Info("note deleted")
	return nil
}

func (s *noteService) ListStoredObjects(ctx context.Context) ([]storage.ObjectInfo, error) {
	objects, err := s.storage.ListObjects(ctx, "")
	if err != nil {
		return nil, apperr.Internal("list stored objects", err)
	}
	return objects, nil
}

func (s *noteService) getNote(ctx context.Context, id string) (*domain.Note, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperr.NotFound("note not found")
	}
	note, err := s.notes.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("note not found")
		}
		return nil, apperr.Internal("get note", err)
	}
	return note, nil
}

func (s *noteService) resolveOwner(ctx context.Context, id string, cache map[string]domain.UserRef) (domain.UserRef, error) {
	if ref, ok := cache[id]; ok {
		return ref, nil
	}
	ref := domain.UnknownUser(id)
	user, err := s.users.GetByID(ctx, id)
	switch {
	case err == nil:
		ref = domain.UserRef{ID: user.ID, Username: user.Username, Email: user.Email}
	case !errors.Is(err, repository.ErrNotFound):
		return domain.UserRef{}, apperr.Internal("get note owner", err)
	}
	if cache != nil {
		cache[id] = ref
	}
	return ref, nil
}

// NormalizePage applies the listing defaults and caps the page size.
func NormalizePage(p domain.Page) domain.Page {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	if p.Page-1 > math.MaxInt/p.Limit {
		p.Page = math.MaxInt/p.Limit + 1
	}
	return p
}

func detectContentType(contentType, ext string) string {
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = contentType[:idx]
	}
	contentType = strings.TrimSpace(contentType)
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}
	if byExt := mime.TypeByExtension(ext); byExt != "" {
		if idx := strings.Index(byExt, ";"); idx != -1 {
			byExt = byExt[:idx]
		}
		return byExt
	}
	return "application/octet-stream"
}
