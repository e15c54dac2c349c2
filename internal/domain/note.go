package domain

import (
	"math"
	"strings"
	"time"
)

const (
	MinRating = 1
	MaxRating = 5
)

// Note is an uploaded study-material file together with its catalog metadata.
type Note struct {
	ID           string
	Title        string
	Subject      string
	Description  string
	FileName     string
	OriginalName string
	MimeType     string
	Size         int64
	UploadedBy   string
	Uploader     UserRef
	Downloads    int64
	Rating       float64
	Ratings      []Rating
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Rating is a single user's score for a note.
type Rating struct {
	UserID string
	Value  int
}

// NoteFilter narrows catalog listings.
type NoteFilter struct {
	Subject string
	Search  string
}

// SubjectValue returns the subject to match exactly, or "" when the filter
// should not restrict by subject.
func (f NoteFilter) SubjectValue() string {
	subject := strings.TrimSpace(f.Subject)
	if subject == "all" {
		return ""
	}
	return subject
}

// SearchValue returns the trimmed search term.
func (f NoteFilter) SearchValue() string {
	return strings.TrimSpace(f.Search)
}

// Matches reports whether n satisfies the filter. Search is a case-insensitive
// substring match against the title or the description.
func (f NoteFilter) Matches(n Note) bool {
	if subject := f.SubjectValue(); subject != "" && n.Subject != subject {
		return false
	}
	search := strings.ToLower(f.SearchValue())
	if search == "" {
		return true
	}
	return strings.Contains(strings.ToLower(n.Title), search) ||
		strings.Contains(strings.ToLower(n.Description), search)
}

// Page addresses a slice of a sorted result set. Page is 1-based.
type Page struct {
	Page  int
	Limit int
}

// Offset returns the index of the first element of the page. It saturates at
// math.MaxInt instead of wrapping for very large pages.
func (p Page) Offset() int {
	if p.Page <= 1 || p.Limit <= 0 {
		return 0
	}
	if p.Page-1 > math.MaxInt/p.Limit {
		return math.MaxInt
	}
	return (p.Page - 1) * p.Limit
}

// Pagination describes where a listing sits within the whole filtered set.
type Pagination struct {
	Page  int
	Limit int
	Total int
	Pages int
}

func NewPagination(p Page, total int) Pagination {
	pages := 0
	if p.Limit > 0 {
		pages = int(math.Ceil(float64(total) / float64(p.Limit)))
	}
	return Pagination{Page: p.Page, Limit: p.Limit, Total: total, Pages: pages}
}

// AverageRating returns the mean of the given ratings rounded to one decimal
// place, or 0 when there are none.
func AverageRating(ratings []Rating) float64 {
	if len(ratings) == 0 {
		return 0
	}
	sum := 0
	for _, r := range ratings {
		sum += r.Value
	}
	mean := float64(sum) / float64(len(ratings))
	return math.Round(mean*10) / 10
}

// ApplyRating upserts the rater's value, keeping the position of an existing
// entry, and recomputes the derived rating.
func (n *Note) ApplyRating(userID string, value int) {
	replaced := false
	for i := range n.Ratings {
		if n.Ratings[i].UserID == userID {
			n.Ratings[i].Value = value
			replaced = true
			break
		}
	}
	if !replaced {
		n.Ratings = append(n.Ratings, Rating{UserID: userID, Value: value})
	}
	n.Rating = AverageRating(n.Ratings)
}
