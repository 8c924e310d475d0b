// Package all registers every storage backend. Import it for side
// effects from binaries that select the backend at runtime:
//
//	import _ "csvpg/internal/storage/all"
package all

import (
	_ "csvpg/internal/storage/mssql"
	_ "csvpg/internal/storage/postgres"
	_ "csvpg/internal/storage/sqlite"
)
