package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAverageRating(t *testing.T) {
	tests := []struct {
		name    string
		ratings []Rating
		want    float64
	}{
		{name: "empty", ratings: nil, want: 0},
		{name: "single", ratings: []Rating{{UserID: "a", Value: 3}}, want: 3},
		{name: "rounds down", ratings: []Rating{{"a", 5}, {"b", 4}, {"c", 4}}, want: 4.3},
		{name: "rounds up", ratings: []Rating{{"a", 5}, {"b", 5}, {"c", 4}}, want: 4.7},
		{name: "half", ratings: []Rating{{"a", 1}, {"b", 2}, {"c", 2}, {"d", 2}}, want: 1.8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, AverageRating(tt.ratings), 1e-9)
		})
	}
}

func TestNote_ApplyRating(t *testing.T) {
	n := &Note{}

	n.ApplyRating("alice", 5)
	n.ApplyRating("bob", 3)
	assert.InDelta(t, 4.0, n.Rating, 1e-9)

	n.ApplyRating("alice", 1)
	require.Len(t, n.Ratings, 2)
	assert.Equal(t, "alice", n.Ratings[0].UserID)
	assert.Equal(t, 1, n.Ratings[0].Value)
	assert.InDelta(t, 2.0, n.Rating, 1e-9)
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("")
	require.NoError(t, err)
	assert.Equal(t, RoleUser, r)

	r, err = ParseRole("Admin")
	require.NoError(t, err)
	assert.True(t, r.IsAdmin())

	_, err = ParseRole("root")
	assert.Error(t, err)
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(Page{Page: 2, Limit: 10}, 21)
	assert.Equal(t, 3, p.Pages)
	assert.Equal(t, 21, p.Total)

	p = NewPagination(Page{Page: 1, Limit: 10}, 0)
	assert.Equal(t, 0, p.Pages)
	assert.Equal(t, 10, Page{Page: 2, Limit: 10}.Offset())
	assert.Equal(t, 0, Page{Page: 0, Limit: 10}.Offset())
	assert.Equal(t, math.MaxInt, Page{Page: math.MaxInt, Limit: 10}.Offset())
	assert.Equal(t, math.MaxInt, Page{Page: math.MaxInt / 5, Limit: 10}.Offset())
}

func TestNoteFilter_Matches(t *testing.T) {
	calculus := Note{Title: "Advanced Calculus Notes", Subject: "Math"}
	physics := Note{Title: "Physics Lab", Subject: "Physics", Description: "pendulum experiment"}

	tests := []struct {
		name   string
		filter NoteFilter
		note   Note
		want   bool
	}{
		{name: "empty filter", filter: NoteFilter{}, note: physics, want: true},
		{name: "search title", filter: NoteFilter{Search: "calc"}, note: calculus, want: true},
		{name: "search case", filter: NoteFilter{Search: "CALC"}, note: calculus, want: true},
		{name: "search miss", filter: NoteFilter{Search: "calc"}, note: physics, want: false},
		{name: "search description", filter: NoteFilter{Search: "Pendulum"}, note: physics, want: true},
		{name: "subject", filter: NoteFilter{Subject: "Math"}, note: calculus, want: true},
		{name: "subject miss", filter: NoteFilter{Subject: "Math"}, note: physics, want: false},
		{name: "subject all", filter: NoteFilter{Subject: "all"}, note: physics, want: true},
		{name: "subject is exact", filter: NoteFilter{Subject: "math"}, note: calculus, want: false},
		{name: "capitalised all is a subject", filter: NoteFilter{Subject: "All"}, note: physics, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(tt.note))
		})
	}
}
