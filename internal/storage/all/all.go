// Package all registers every sink backend with the storage factory.
// Blank-import it from binaries that select the backend at run time.
package all

import (
	_ "auditload/internal/storage/mssql"
	_ "auditload/internal/storage/postgres"
	_ "auditload/internal/storage/sqlite"
)
