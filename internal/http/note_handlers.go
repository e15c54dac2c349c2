package http

import (
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"noteshare/internal/apperr"
	"noteshare/internal/domain"
	"noteshare/internal/service"
)

// multipartOverhead leaves room for the form fields and part headers that
// travel alongside the file.
const multipartOverhead = 1 << 20

type uploadNoteRequest struct {
	Title       string `form:"title" binding:"required,max=200"`
	Subject     string `form:"subject" binding:"required,max=100"`
	Description string `form:"description" binding:"max=2000"`
}

type rateNoteRequest struct {
	Rating int `json:"rating" binding:"required,min=1,max=5"`
}

func (h *Handler) uploadNote(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload+multipartOverhead)

	header, err := c.FormFile("file")
	if err != nil {
		if isBodyTooLarge(err) {
			h.fail(c, apperr.Validation("file too large"))
			return
		}
		h.fail(c, apperr.Validation("no file uploaded"))
		return
	}

	var req uploadNoteRequest
	if err := c.ShouldBind(&req); err != nil {
		h.fail(c, bindError(err))
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Subject = strings.TrimSpace(req.Subject)
	if req.Title == "" || req.Subject == "" {
		var fields []apperr.FieldError
		if req.Title == "" {
			fields = append(fields, apperr.FieldError{Field: "title", Message: "title is required"})
		}
		if req.Subject == "" {
			fields = append(fields, apperr.FieldError{Field: "subject", Message: "subject is required"})
		}
		h.fail(c, apperr.Validation("invalid input", fields...))
		return
	}

	file, err := header.Open()
	if err != nil {
		h.fail(c, apperr.Internal("open uploaded file", err))
		return
	}
	defer file.Close()

	note, err := h.notes.Upload(c.Request.Context(), service.UploadInput{
		Title:        req.Title,
		Subject:      req.Subject,
		Description:  req.Description,
		OriginalName: header.Filename,
		ContentType:  header.Header.Get("Content-Type"),
		Size:         header.Size,
		Body:         file,
		UploaderID:   currentUser(c).ID,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "note uploaded successfully",
		"note":    noteToResponse(*note),
	})
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	// multipart does not always wrap the reader error
	return strings.Contains(err.Error(), "http: request body too large")
}

func (h *Handler) listNotes(c *gin.Context) {
	filter := domain.NoteFilter{
		Subject: c.Query("subject"),
		Search:  c.Query("search"),
	}
	page := domain.Page{
		Page:  queryInt(c, "page"),
		Limit: queryInt(c, "limit"),
	}

	list, err := h.notes.List(c.Request.Context(), filter, page)
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := NoteListResponse{
		Notes:      make([]NoteResponse, len(list.Notes)),
		Pagination: paginationToResponse(list.Pagination),
	}
	for i := range list.Notes {
		resp.Notes[i] = noteToResponse(list.Notes[i])
	}
	c.JSON(http.StatusOK, resp)
}

// queryInt returns 0 for a missing or non-numeric value so the service
// applies its default.
func queryInt(c *gin.Context, key string) int {
	v, err := strconv.Atoi(strings.TrimSpace(c.Query(key)))
	if err != nil {
		return 0
	}
	return v
}

func (h *Handler) getNote(c *gin.Context) {
	note, err := h.notes.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"note": noteToResponse(*note)})
}

func (h *Handler) downloadNote(c *gin.Context) {
	dl, err := h.notes.OpenDownload(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	defer dl.Body.Close()

	h.logger.WithFields(logrus.Fields{
		"note_id": dl.Note.ID,
		"user_id": currentUser(c).ID,
	}).Info("note downloaded")

	c.DataFromReader(http.StatusOK, dl.Size, dl.Note.MimeType, dl.Body, map[string]string{
		"Content-Disposition": contentDisposition(dl.Note.OriginalName),
	})
}

func contentDisposition(name string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "attachment"
}

func (h *Handler) rateNote(c *gin.Context) {
	var req rateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, bindError(err))
		return
	}

	note, err := h.notes.Rate(c.Request.Context(), c.Param("id"), currentUser(c).ID, req.Rating)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"note": noteToResponse(*note)})
}
