package sqldb

import (
	"context"
	"database/sql"

	"github.com/gargbot/archivist/storage"
)

// migrateV002 adds nullable dedup key columns with unique indexes. Rows
// inserted without a key stay NULL and never collide.
func migrateV002(ctx context.Context, tx *sql.Tx, dialect storage.Dialect) error {
	if dialect == storage.DialectSQLite {
		return execAll(ctx, tx, []string{
			`ALTER TABLE msn_messages ADD COLUMN msg_key TEXT`,
			`CREATE UNIQUE INDEX IF NOT EXISTS uq_msn_messages_key ON msn_messages(msg_key)`,
			`ALTER TABLE dbx_pictures ADD COLUMN path_key TEXT`,
			`CREATE UNIQUE INDEX IF NOT EXISTS uq_dbx_pictures_key ON dbx_pictures(path_key)`,
		})
	}
	return execAll(ctx, tx, []string{
		`ALTER TABLE msn_messages ADD COLUMN msg_key CHAR(16) NULL`,
		`CREATE UNIQUE INDEX uq_msn_messages_key ON msn_messages (msg_key)`,
		`ALTER TABLE dbx_pictures ADD COLUMN path_key CHAR(16) NULL`,
		`CREATE UNIQUE INDEX uq_dbx_pictures_key ON dbx_pictures (path_key)`,
	})
}
