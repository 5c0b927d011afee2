// Package domain holds typed identifiers shared across bounded contexts.
//
// Ids are parsed once at the trust boundary (HTTP handlers, token claims) and
// travel as distinct types afterwards, so a course id can never be passed
// where a user id is expected.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "learnhub/pkg/domain-errors"
)

type (
	UserID         uuid.UUID
	CourseID       uuid.UUID
	NotificationID uuid.UUID
)

func NewUserID() UserID                 { return UserID(uuid.New()) }
func NewCourseID() CourseID             { return CourseID(uuid.New()) }
func NewNotificationID() NotificationID { return NotificationID(uuid.New()) }

func ParseUserID(s string) (UserID, error) {
	u, err := parseID("user id", s)
	return UserID(u), err
}

func ParseCourseID(s string) (CourseID, error) {
	u, err := parseID("course id", s)
	return CourseID(u), err
}

func parseID(kind, s string) (uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, kind+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, "invalid "+kind)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, "invalid "+kind)
	}
	return u, nil
}

func (id UserID) String() string { return uuid.UUID(id).String() }
func (id UserID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id UserID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *UserID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	if err != nil {
		return err
	}
	*id = UserID(u)
	return nil
}

func (id CourseID) String() string { return uuid.UUID(id).String() }
func (id CourseID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id CourseID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *CourseID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	if err != nil {
		return err
	}
	*id = CourseID(u)
	return nil
}

func (id NotificationID) String() string { return uuid.UUID(id).String() }

func (id NotificationID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *NotificationID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	if err != nil {
		return err
	}
	*id = NotificationID(u)
	return nil
}
