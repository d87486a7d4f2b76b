package services

import (
	"os"
	"strconv"
)

const DefaultFallbackAdminID uint = 1

// UserResolver supplies the identity stamped on new cycle trees. Identity
// logic itself lives outside this service.
type UserResolver interface {
	// ResolveCreator returns the user to stamp on a new cycle: the acting
	// user when present, otherwise a fallback admin for the workflow. The
	// second return value is false when neither can be resolved.
	ResolveCreator(workflowID uint, actorID uint) (uint, bool)
}

// EnvUserResolver resolves the fallback admin from FALLBACK_ADMIN_ID,
// defaulting to DefaultFallbackAdminID when unset.
type EnvUserResolver struct{}

func (EnvUserResolver) ResolveCreator(workflowID uint, actorID uint) (uint, bool) {
	if actorID != 0 {
		return actorID, true
	}
	idStr := os.Getenv("FALLBACK_ADMIN_ID")
	if idStr == "" {
		return DefaultFallbackAdminID, true
	}
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
