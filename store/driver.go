package store

import (
	"database/sql"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/mattn/go-sqlite3"
)

// driverName is the database/sql driver used by Store. It is the stock
// go-sqlite3 driver plus the docai_lower SQL function, which lower-cases
// with Go's Unicode tables. SQLite's built-in lower() only folds ASCII,
// so "Échéance" would never match "échéance".
const driverName = "sqlite3_docai"

func init() {
	sqlite_vec.Auto()
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("docai_lower", strings.ToLower, true)
		},
	})
}
