package sqldb

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"

	"github.com/VividCortex/mysqlerr"
	"github.com/go-sql-driver/mysql"
)

var (
	// ErrRetryFailed wraps the error of a statement that failed again after a reconnect.
	ErrRetryFailed = errors.New("statement failed after reconnect")

	// ErrReconnectFailed indicates the connection could not be re-established.
	ErrReconnectFailed = errors.New("reconnect failed")

	// ErrTransactionLost indicates uncommitted statements were discarded
	// together with a broken transaction. The caller must start over.
	ErrTransactionLost = errors.New("transaction lost")
)

// operationalCodes are MySQL server errors after which the connection (or
// the session state on it) cannot be trusted.
var operationalCodes = map[uint16]struct{}{
	mysqlerr.ER_CON_COUNT_ERROR:       {},
	mysqlerr.ER_SERVER_SHUTDOWN:       {},
	mysqlerr.ER_NET_READ_ERROR:        {},
	mysqlerr.ER_NET_READ_INTERRUPTED:  {},
	mysqlerr.ER_NET_ERROR_ON_WRITE:    {},
	mysqlerr.ER_NET_WRITE_INTERRUPTED: {},
	mysqlerr.ER_LOCK_WAIT_TIMEOUT:     {},
}

// keepsTransaction reports whether err rolled back only the failing statement
// and left the surrounding transaction open.
func keepsTransaction(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlerr.ER_LOCK_WAIT_TIMEOUT
}

// IsOperational reports whether err signals a broken or unusable connection
// rather than a problem with the statement itself.
func IsOperational(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, mysql.ErrInvalidConn) ||
		errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		_, ok := operationalCodes[myErr.Number]
		return ok
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
