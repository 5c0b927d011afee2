package models

import (
	id "learnhub/pkg/domain"
)

// Course carries only what the ledger and payment verifier need.
type Course struct {
	ID        id.CourseID `json:"id"`
	Name      string      `json:"name"`
	Price     int64       `json:"price"`
	Purchased int64       `json:"purchased"`
}

type Outcome string

const (
	OutcomeEnrolled        Outcome = "enrolled"
	OutcomeAlreadyEnrolled Outcome = "already_enrolled"
)
