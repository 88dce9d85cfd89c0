// Package user holds the authenticated account record.
package user

import "time"

// User is an account known to the service. ID is the auth subject.
type User struct {
	ID        string
	Email     string
	PlanSlug  string
	CreatedAt time.Time
}
