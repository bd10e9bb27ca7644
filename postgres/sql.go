// Copyright 2015-2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package postgres

// Generic database/sql plumbing for the store: retrying
// transactions, row iteration, nullable times, and statements built
// by string concatenation with numbered parameters.

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// maxTxAttempts bounds how many times withTx retries a transaction
// that failed to serialize.
const maxTxAttempts = 10

// isSerializationFailure reports whether err means the transaction
// lost a race with another transaction and may simply be rerun.
func isSerializationFailure(err error) bool {
	pqerr, ok := err.(*pq.Error)
	return ok && pqerr.Code.Name() == "serialization_failure"
}

// withTx runs f in a REPEATABLE READ transaction, committing if f
// succeeds and rolling back otherwise.  A transaction that fails to
// serialize is rerun from the start.  Write transactions take the
// store's advisory lock first, so writers run one at a time and
// change rows commit in sequence order.
func withTx(s *pgService, readOnly bool, f func(*sql.Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = runTx(s, readOnly, f)
		if !isSerializationFailure(err) {
			return err
		}
		s.log.WithField("attempt", attempt).Debug("retrying transaction after serialization failure")
	}
	return err
}

// runTx makes one attempt at a withTx transaction.
func runTx(s *pgService, readOnly bool, f func(*sql.Tx) error) (err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if err2 := tx.Rollback(); err == nil && err2 != sql.ErrTxDone {
			err = err2
		}
	}()

	mode := "REPEATABLE READ"
	if readOnly {
		mode += " READ ONLY"
	}
	if _, err = tx.Exec("SET TRANSACTION ISOLATION LEVEL " + mode); err != nil {
		return err
	}
	if !readOnly {
		if _, err = tx.Exec("SELECT pg_advisory_xact_lock($1)", changeLock); err != nil {
			return err
		}
	}
	if err = f(tx); err != nil {
		return err
	}
	committed = true
	return tx.Commit()
}

// scanRows calls f once per row and closes rows when done.  f should
// only Scan the current row.
func scanRows(rows *sql.Rows, f func() error) error {
	defer rows.Close()
	for rows.Next() {
		if err := f(); err != nil {
			return err
		}
	}
	return rows.Err()
}

// queryAndScan runs a query in a read-only transaction and calls f
// for each row of its result.
func queryAndScan(s *pgService, query string, params queryParams, f func(*sql.Rows) error) error {
	return withTx(s, true, func(tx *sql.Tx) error {
		rows, err := tx.Query(query, params...)
		if err != nil {
			return err
		}
		return scanRows(rows, func() error { return f(rows) })
	})
}

// execInTx runs a single statement in a write transaction.
func execInTx(s *pgService, query string, params queryParams) error {
	return withTx(s, false, func(tx *sql.Tx) error {
		_, err := tx.Exec(query, params...)
		return err
	})
}

// The zero time is stored as NULL.

func timeToNullTime(t time.Time) pq.NullTime {
	return pq.NullTime{Time: t, Valid: !t.IsZero()}
}

func nullTimeToTime(nt pq.NullTime) time.Time {
	if !nt.Valid {
		return time.Time{}
	}
	return nt.Time
}

// where renders a WHERE clause ANDing conditions, or nothing if there
// are none.
func where(conditions []string) string {
	if len(conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conditions, " AND ")
}

// buildSelect builds "SELECT outputs FROM tables WHERE conditions".
func buildSelect(outputs, tables, conditions []string) string {
	return "SELECT " + strings.Join(outputs, ", ") +
		" FROM " + strings.Join(tables, ", ") +
		where(conditions)
}

// buildUpdate builds "UPDATE table SET changes WHERE conditions".
func buildUpdate(table string, changes, conditions []string) string {
	query := "UPDATE " + table
	if len(changes) > 0 {
		query += " SET " + strings.Join(changes, ", ")
	}
	return query + where(conditions)
}

// queryParams accumulates the positional parameters of a statement.
type queryParams []interface{}

// Param appends a value and returns its placeholder, $1, $2, ...
func (qp *queryParams) Param(value interface{}) string {
	*qp = append(*qp, value)
	return fmt.Sprintf("$%d", len(*qp))
}

// fieldList collects column assignments for an INSERT or UPDATE.
// Each expression is literal SQL, usually a parameter placeholder.
type fieldList struct {
	columns []string
	exprs   []string
}

// Add assigns a column a parameterized value.
func (f *fieldList) Add(qp *queryParams, column string, value interface{}) {
	f.Set(column, qp.Param(value))
}

// Set assigns a column a literal SQL expression.
func (f *fieldList) Set(column, expr string) {
	f.columns = append(f.columns, column)
	f.exprs = append(f.exprs, expr)
}

// InsertStatement builds an INSERT of the collected columns into
// table.
func (f fieldList) InsertStatement(table string) string {
	return "INSERT INTO " + table +
		"(" + strings.Join(f.columns, ", ") + ")" +
		" VALUES(" + strings.Join(f.exprs, ", ") + ")"
}

// UpdateChanges renders the collected columns as "column=expr"
// assignments for buildUpdate.
func (f fieldList) UpdateChanges() []string {
	changes := make([]string, len(f.columns))
	for i, column := range f.columns {
		changes[i] = column + "=" + f.exprs[i]
	}
	return changes
}
