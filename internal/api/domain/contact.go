package domain

import "time"

// Contact is a public contact-form submission.
type Contact struct {
	ID        string
	Name      string
	Email     string
	Subject   string
	Message   string
	CreatedAt time.Time
}
