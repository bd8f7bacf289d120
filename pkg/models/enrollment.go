package models

import (
	"time"

	"github.com/google/uuid"
)

// Payment statuses accepted on enrollments. A zero-amount enrollment is
// completed immediately; anything else starts as whatever the caller sends
// (defaulting to pending).
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusSuccess   = "success"
	PaymentStatusFailed    = "failed"
)

// User is a platform account resolved or created during enrollment.
type User struct {
	ID          uuid.UUID `db:"id"           json:"id"`
	FullName    string    `db:"full_name"    json:"full_name"`
	Email       string    `db:"email"        json:"email"`
	Phone       string    `db:"phone"        json:"phone"`
	CountryCode string    `db:"country_code" json:"country_code"`
	ChatUserID  string    `db:"chat_user_id" json:"chat_user_id,omitempty"`
	CreatedAt   time.Time `db:"created_at"   json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"   json:"updated_at"`
}

// Course is the catalog entry enrollments reference. Only the title is
// needed here; catalog management lives in the wider platform.
type Course struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	Title     string    `db:"title"      json:"title"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Enrollment links a user to a course with payment details. Identity fields
// are denormalized from the user so lead scoring can read a batch without a
// join fan-out.
type Enrollment struct {
	ID            uuid.UUID `db:"id"             json:"id"`
	UserID        uuid.UUID `db:"user_id"        json:"user_id"`
	CourseID      uuid.UUID `db:"course_id"      json:"course_id"`
	CourseName    string    `db:"course_name"    json:"course_name"`
	FullName      string    `db:"full_name"      json:"full_name"`
	Email         string    `db:"email"          json:"email"`
	Phone         string    `db:"phone"          json:"phone"`
	CountryCode   string    `db:"country_code"   json:"country_code,omitempty"`
	ChatUserID    string    `db:"chat_user_id"   json:"chat_user_id,omitempty"`
	PaymentAmount float64   `db:"payment_amount" json:"payment_amount"`
	PaymentMethod string    `db:"payment_method" json:"payment_method,omitempty"`
	PaymentStatus string    `db:"payment_status" json:"payment_status"`
	ReceiptURL    string    `db:"receipt_url"    json:"receipt_url,omitempty"`
	CreatedAt     time.Time `db:"created_at"     json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"     json:"updated_at"`
}
