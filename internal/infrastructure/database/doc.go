// Package database provides SQLite persistence for the Gray Logic node.
//
// The node persists little: provisioned WiFi credentials and the schema
// version. The package manages:
//   - Opening the database with WAL mode and a busy timeout
//   - A single-connection pool matching SQLite's single-writer model
//   - Versioned, forward-only schema migrations from any fs.FS
//
// Security Considerations:
//   - All queries use parameterised statements
//   - The database file is restricted to 0600 since it stores passphrases
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if _, err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
package database
