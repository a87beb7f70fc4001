package books

import (
	"math"
	"strings"

	"github.com/MarcoPoloResearchLab/bookhaven/internal/apperr"
)

const (
	msgRatingOutOfRange = "Rating must be between 1 and 5."
	defaultDraftRating  = 1
)

// Draft holds the editable fields of the add and update forms.
type Draft struct {
	Title      string
	Author     string
	Genre      string
	Rating     float64
	Summary    string
	CoverImage string
}

// NewDraft returns an empty draft with the form's initial rating.
func NewDraft() Draft {
	return Draft{Rating: defaultDraftRating}
}

type requiredField struct {
	label string
	value func(Draft) string
}

var requiredFields = []requiredField{
	{label: "Title", value: func(d Draft) string { return d.Title }},
	{label: "Author", value: func(d Draft) string { return d.Author }},
	{label: "Genre", value: func(d Draft) string { return d.Genre }},
	{label: "Summary", value: func(d Draft) string { return d.Summary }},
	{label: "Cover image", value: func(d Draft) string { return d.CoverImage }},
}

// Validate reports the first rule the draft violates as a validation error.
func (d Draft) Validate() error {
	for _, field := range requiredFields {
		if strings.TrimSpace(field.value(d)) == "" {
			return apperr.Validation(field.label + " is required.")
		}
	}
	if math.IsNaN(d.Rating) || d.Rating < MinRating || d.Rating > MaxRating {
		return apperr.Validation(msgRatingOutOfRange)
	}
	return nil
}

// Input builds the service payload for d, attributing it to the given owner.
func (d Draft) Input(ownerEmail, ownerName string) Input {
	return Input{
		Title:      strings.TrimSpace(d.Title),
		Author:     strings.TrimSpace(d.Author),
		Genre:      strings.TrimSpace(d.Genre),
		Rating:     d.Rating,
		Summary:    strings.TrimSpace(d.Summary),
		CoverImage: strings.TrimSpace(d.CoverImage),
		OwnerEmail: ownerEmail,
		OwnerName:  ownerName,
	}
}
