package books

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

const (
	// MinRating is the lowest rating a draft may carry.
	MinRating = 1.0
	// MaxRating is the highest rating a draft may carry.
	MaxRating = 5.0
)

// Rating is a book rating as read from the catalog. Ratings that are absent or
// cannot be parsed as a finite number read as 0.
type Rating float64

// ParseRating applies the catalog's lenient rating policy to raw text.
func ParseRating(raw string) Rating {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	return Rating(value)
}

// Float64 returns the numeric value.
func (r Rating) Float64() float64 {
	return float64(r)
}

// UnmarshalJSON accepts numbers, numeric strings, and null.
func (r *Rating) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*r = 0
		return nil
	}
	if trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			*r = 0
			return nil
		}
		*r = ParseRating(text)
		return nil
	}
	*r = ParseRating(string(trimmed))
	return nil
}

// MarshalJSON always encodes the rating as a JSON number.
func (r Rating) MarshalJSON() ([]byte, error) {
	value := float64(r)
	if math.IsNaN(value) || math.IsInf(value, 0) {
		value = 0
	}
	return []byte(strconv.FormatFloat(value, 'f', -1, 64)), nil
}
