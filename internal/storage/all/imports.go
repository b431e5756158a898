// Package all wires every built-in storage backend into the storage factory.
// Import it for side effects:
//
//	import _ "ordersetl/internal/storage/all"
//
// after which storage.New accepts "sqlite", "postgres", "mysql" and "mssql".
package all

import (
	_ "ordersetl/internal/storage/mssql"
	_ "ordersetl/internal/storage/mysql"
	_ "ordersetl/internal/storage/postgres"
	_ "ordersetl/internal/storage/sqlite"
)
