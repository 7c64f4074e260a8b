package subdialog

import "github.com/google/uuid"

// newSetID generates a diagnostic-only correlation identifier for a Set.
// It never participates in subscription matching, which remains keyed
// exclusively by (role, event, id) per Sub.
func newSetID() string {
	return uuid.NewString()
}
