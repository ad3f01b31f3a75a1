package models

import (
	"time"
)

// Review is the canonical shape of a review, whichever column layout backs it
type Review struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Rating      int       `json:"rating"`
	Message     string    `json:"message"`
	DeleteToken string    `json:"delete_token,omitempty"`
	Date        time.Time `json:"date"`
}

// Public returns a copy of the review without its delete token
func (r Review) Public() Review {
	r.DeleteToken = ""
	return r
}

// ReviewStats summarizes the ratings of all reviews
type ReviewStats struct {
	Count        int64         `json:"count"`
	Average      float64       `json:"average"`
	Distribution map[int]int64 `json:"distribution"`
}

// Rating bounds
const (
	MinRating = 1
	MaxRating = 5
)
