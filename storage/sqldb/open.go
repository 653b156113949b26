package sqldb

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/gargbot/archivist/config"
	"github.com/gargbot/archivist/storage"
	"github.com/go-sql-driver/mysql"

	_ "modernc.org/sqlite"
)

// mysqlLogger routes driver diagnostics through slog.
type mysqlLogger struct {
	logger *slog.Logger
}

var _ mysql.Logger = (*mysqlLogger)(nil)

func (l *mysqlLogger) Print(v ...any) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprint(v...)))
}

// Open opens the database described by cfg and reports its dialect. The
// returned pool is not yet connected.
func Open(cfg config.Database) (*sql.DB, storage.Dialect, error) {
	dialect, err := storage.ParseDialect(cfg.Driver)
	if err != nil {
		return nil, "", err
	}

	switch dialect {
	case storage.DialectMySQL:
		connector, err := mysql.NewConnector(mysqlConfig(cfg))
		if err != nil {
			return nil, "", fmt.Errorf("mysql connector: %w", err)
		}
		db := sql.OpenDB(connector)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		return db, dialect, nil

	default:
		db, err := sql.Open("sqlite", sqliteDSN(cfg.Path))
		if err != nil {
			return nil, "", fmt.Errorf("open sqlite: %w", err)
		}
		return db, dialect, nil
	}
}

func mysqlConfig(cfg config.Database) *mysql.Config {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	mc.DBName = cfg.Name
	mc.Collation = "utf8mb4_unicode_ci"
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.Timeout = cfg.ConnectTimeout
	mc.Logger = &mysqlLogger{logger: slog.Default().With("component", "mysql")}
	return mc
}

func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=busy_timeout(5000)"
}
