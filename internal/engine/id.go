package engine

import "github.com/google/uuid"

// generateID creates the process-lifetime session ID.
func generateID() string {
	return uuid.NewString()
}
