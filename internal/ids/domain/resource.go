package domain

import "time"

// Resource is a protected API whose scopes clients may request. Together the
// resources form the scope catalog: a requested scope that no resource
// declares is invalid.
type Resource struct {
	ID          string
	Name        string
	DisplayName string
	Scopes      []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
