package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// PostgresFault holds the server-side fields of a driver error. Both pgx and
// lib/pq errors are recognised.
type PostgresFault struct {
	Code       string
	Constraint string
	Table      string
	Column     string
	Detail     string
	Message    string
}

// Diagnostics is the log-only view of an error. It never reaches clients.
type Diagnostics struct {
	Message  string
	Code     Code
	Chain    []string
	Postgres *PostgresFault
}

func Describe(err error) Diagnostics {
	if err == nil {
		return Diagnostics{}
	}

	diag := Diagnostics{Message: err.Error(), Postgres: postgresFault(err)}
	if typed := As(err); typed != nil {
		diag.Code = typed.Code()
	}
	for link := err; link != nil; link = stdErrors.Unwrap(link) {
		diag.Chain = append(diag.Chain, fmt.Sprintf("%T: %v", link, link))
	}
	return diag
}

// LogFields flattens the diagnostics, leaving out empty values.
func (d Diagnostics) LogFields() map[string]any {
	fields := map[string]any{"error": d.Message}
	if d.Code != "" {
		fields["error_code"] = string(d.Code)
	}
	if len(d.Chain) > 1 {
		fields["error_chain"] = d.Chain
	}
	if pg := d.Postgres; pg != nil {
		for key, value := range map[string]string{
			"pg_code":       pg.Code,
			"pg_constraint": pg.Constraint,
			"pg_table":      pg.Table,
			"pg_column":     pg.Column,
			"pg_detail":     pg.Detail,
			"pg_message":    pg.Message,
		} {
			if value != "" {
				fields[key] = value
			}
		}
	}
	return fields
}

func postgresFault(err error) *PostgresFault {
	var pgxErr *pgconn.PgError
	if stdErrors.As(err, &pgxErr) {
		return &PostgresFault{
			Code:       pgxErr.Code,
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Column:     pgxErr.ColumnName,
			Detail:     pgxErr.Detail,
			Message:    pgxErr.Message,
		}
	}
	var pqErr *pq.Error
	if stdErrors.As(err, &pqErr) {
		return &PostgresFault{
			Code:       string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}
	}
	return nil
}
