package core

import "time"

// DateLayout is the storage and CLI format for dates of birth.
const DateLayout = "2006-01-02"

// DefaultWish is used when the wish catalog has no active entries.
const DefaultWish = "生日快乐！愿你天天开心，万事如意！"

// SendStatus records the outcome of one greeting attempt.
type SendStatus string

const (
	SendStatusSuccess   SendStatus = "success"
	SendStatusFailed    SendStatus = "failed"
	SendStatusThrottled SendStatus = "throttled"
)

// User is a greeting recipient.
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	// DOB holds only the calendar date; the time and zone are ignored.
	DOB time.Time `json:"dob"`
	// LastSentYear is the year of the last successful greeting, 0 if never.
	LastSentYear int       `json:"last_sent_year,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// BirthdayOn reports whether day is the user's birthday. Users born on
// February 29 are greeted on February 28 in non-leap years.
func (u User) BirthdayOn(day time.Time) bool {
	if u.DOB.IsZero() {
		return false
	}
	month, date := day.Month(), day.Day()
	if u.DOB.Month() == month && u.DOB.Day() == date {
		return true
	}
	return u.DOB.Month() == time.February && u.DOB.Day() == 29 &&
		month == time.February && date == 28 && !IsLeapYear(day.Year())
}

// AgeOn returns the age the user turns on day's year.
func (u User) AgeOn(day time.Time) int {
	if u.DOB.IsZero() {
		return 0
	}
	return day.Year() - u.DOB.Year()
}

// IsLeapYear reports whether year has a February 29.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// Wish is one entry of the greeting catalog.
type Wish struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content" yaml:"content"`
	Category  string    `json:"category" yaml:"category"`
	Active    bool      `json:"active" yaml:"active"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`
}

// SendLog is one row of the delivery history.
type SendLog struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"user_id"`
	UserName  string     `json:"user_name,omitempty"`
	UserEmail string     `json:"user_email,omitempty"`
	SentAt    time.Time  `json:"sent_at"`
	Status    SendStatus `json:"status"`
	ErrorMsg  string     `json:"error_msg,omitempty"`
}

// UserStats summarizes the recipient list for a given day.
type UserStats struct {
	Total              int `json:"total"`
	BirthdaysToday     int `json:"birthdays_today"`
	BirthdaysThisMonth int `json:"birthdays_this_month"`
	GreetedThisYear    int `json:"greeted_this_year"`
}

// JobResult summarizes one run of the daily greeting job.
type JobResult struct {
	Date       string        `json:"date"`
	Candidates int           `json:"candidates"`
	Sent       int           `json:"sent"`
	Failed     int           `json:"failed"`
	Throttled  int           `json:"throttled"`
	Duration   time.Duration `json:"duration_ns"`
}

// Success reports whether every candidate was greeted.
func (r JobResult) Success() bool {
	return r.Failed == 0 && r.Throttled == 0
}
