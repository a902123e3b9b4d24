package progress

import (
	"errors"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/psantana5/dftd-labeler/pkg/retry"
)

// transient reports whether a failed store call may succeed if repeated.
func transient(err error) bool {
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "53300", "57P03": // too_many_connections, cannot_connect_now
			return true
		}
		return pqErr.Code.Class() == "08"
	}

	return retry.Transient(err)
}

func storePolicy() retry.Policy {
	return retry.DefaultPolicy(transient)
}
