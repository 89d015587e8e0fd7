package auth

import (
	"college-voting-backend/models"
)

// Allow is the single authorization check used by every role-gated
// endpoint. Handlers declare the roles they require instead of
// repeating role comparisons inline.
func Allow(actual models.UserRole, required ...models.UserRole) bool {
	for _, r := range required {
		if actual == r {
			return true
		}
	}
	return false
}

// ManagementRoles are the roles allowed to manage elections and candidates
var ManagementRoles = []models.UserRole{models.RoleAdmin, models.RoleElectionOfficer}
