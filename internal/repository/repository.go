package repository

import "database/sql"

// Querier is satisfied by both *sql.DB and *sql.Tx, so repository
// operations can run standalone or inside a caller-owned transaction.
type Querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// nullable maps an empty string to NULL for optional foreign keys
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
