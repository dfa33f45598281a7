package models

import "github.com/google/uuid"

// ensureID assigns a client-side UUID so inserts do not depend on a database
// default.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
