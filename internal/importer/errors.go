package importer

import "errors"

// Fatal pre-write failure categories. Wrap with %w so the CLI can match
// them with errors.Is and print a targeted message.
var (
	// ErrConfiguration marks option combinations a run cannot proceed
	// with: a missing table name, an unknown if-exists policy, a target
	// table that would have to be created while creation is disabled.
	ErrConfiguration = errors.New("configuration error")

	// ErrTableExists marks an existing target table under the fail policy.
	ErrTableExists = errors.New("table already exists")
)
