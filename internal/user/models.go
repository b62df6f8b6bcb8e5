package user

import (
	id "certflow/pkg/domain"
)

// User is the minimal identity the core needs: enough to resolve a
// notification recipient and to attribute transitions to an actor.
// Authentication and account management live outside this system.
type User struct {
	ID       id.UserID
	Email    string
	FullName string
	Role     string
}
