package sqldb

import (
	"context"
	"database/sql"

	"github.com/gargbot/archivist/storage"
)

// migrateV001 creates the message, picture and face tables. Every statement
// uses IF NOT EXISTS so the migration can adopt an existing database.
func migrateV001(ctx context.Context, tx *sql.Tx, dialect storage.Dialect) error {
	if dialect == storage.DialectSQLite {
		return execAll(ctx, tx, sqliteV001)
	}
	return execAll(ctx, tx, mysqlV001)
}

var mysqlV001 = []string{
	`CREATE TABLE IF NOT EXISTS msn_messages (
		msg_id     BIGINT AUTO_INCREMENT PRIMARY KEY,
		session_ID VARCHAR(255) NOT NULL,
		msg_type   VARCHAR(16)  NOT NULL,
		msg_source VARCHAR(255) NOT NULL,
		msg_time   DATETIME(6)  NOT NULL,
		from_user  VARCHAR(255) NOT NULL,
		to_users   TEXT,
		msg_text   TEXT         NOT NULL,
		msg_color  CHAR(7),
		KEY idx_msn_session_time (session_ID, msg_time)
	) DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS dbx_pictures (
		pic_id BIGINT AUTO_INCREMENT PRIMARY KEY,
		path   VARCHAR(512) NOT NULL,
		topic  VARCHAR(32)  NOT NULL,
		taken  DATETIME     NULL,
		KEY idx_dbx_pictures_path (path),
		KEY idx_dbx_pictures_topic (topic)
	) DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS faces (
		garg_id INT PRIMARY KEY,
		name    VARCHAR(255) NOT NULL
	) DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS dbx_pictures_faces (
		garg_id INT    NOT NULL,
		pic_id  BIGINT NOT NULL,
		KEY idx_pictures_faces_pic (pic_id),
		KEY idx_pictures_faces_garg (garg_id)
	) DEFAULT CHARSET=utf8mb4`,
}

var sqliteV001 = []string{
	`CREATE TABLE IF NOT EXISTS msn_messages (
		msg_id     INTEGER PRIMARY KEY AUTOINCREMENT,
		session_ID TEXT     NOT NULL,
		msg_type   TEXT     NOT NULL,
		msg_source TEXT     NOT NULL,
		msg_time   DATETIME NOT NULL,
		from_user  TEXT     NOT NULL,
		to_users   TEXT,
		msg_text   TEXT     NOT NULL,
		msg_color  TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_msn_session_time ON msn_messages(session_ID, msg_time)`,

	`CREATE TABLE IF NOT EXISTS dbx_pictures (
		pic_id INTEGER PRIMARY KEY AUTOINCREMENT,
		path   TEXT NOT NULL,
		topic  TEXT NOT NULL,
		taken  DATETIME
	)`,
	`CREATE INDEX IF NOT EXISTS idx_dbx_pictures_path ON dbx_pictures(path)`,
	`CREATE INDEX IF NOT EXISTS idx_dbx_pictures_topic ON dbx_pictures(topic)`,

	`CREATE TABLE IF NOT EXISTS faces (
		garg_id INTEGER PRIMARY KEY,
		name    TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS dbx_pictures_faces (
		garg_id INTEGER NOT NULL,
		pic_id  INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_pictures_faces_pic ON dbx_pictures_faces(pic_id)`,
	`CREATE INDEX IF NOT EXISTS idx_pictures_faces_garg ON dbx_pictures_faces(garg_id)`,
}
