package authdb

import (
	"github.com/BurntSushi/migration"
	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
)

func Migrations(log logs.Log) []migration.Migrator {
	migs := []migration.Migrator{}
	idx := 0

	migs = append(migs, dbh.MakeMigrationFromSQL(log, &idx,
		`
		CREATE TABLE user(
			id INTEGER PRIMARY KEY,
			email TEXT NOT NULL,
			email_normalized TEXT NOT NULL,
			name TEXT,
			permissions TEXT NOT NULL,
			created_at INT NOT NULL
		);
		CREATE UNIQUE INDEX idx_user_email_normalized ON user (email_normalized);

		CREATE TABLE session(
			id TEXT PRIMARY KEY,
			user_id INT NOT NULL,
			created_at INT NOT NULL,
			expires_at INT NOT NULL
		);
		CREATE INDEX idx_session_user_id ON session (user_id);

		CREATE TABLE magic_token(
			id INTEGER PRIMARY KEY,
			email TEXT NOT NULL,
			code_hash BLOB NOT NULL,
			created_at INT NOT NULL,
			expires_at INT NOT NULL,
			consumed INT NOT NULL DEFAULT 0
		);
		CREATE INDEX idx_magic_token_email ON magic_token (email);

	`))

	return migs
}
