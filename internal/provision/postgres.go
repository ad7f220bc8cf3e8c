package provision

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// PGAdmin wraps an administrative connection to a bootstrap-mode Postgres
// and builds the standard provisioning facts against it. The connection is
// dialed after the dependency reports ready and closed before its
// bootstrap-mode instance is stopped.
type PGAdmin struct {
	conn *pgx.Conn
}

func DialPGAdmin(ctx context.Context, dsn string) (*PGAdmin, error) {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("admin connect: %w", err)
	}
	return &PGAdmin{conn: conn}, nil
}

func (a *PGAdmin) Close(ctx context.Context) error {
	if a.conn == nil {
		return nil
	}
	return a.conn.Close(ctx)
}

// EnsureRole asserts that a login role exists. Password may be empty for a
// passwordless role.
func (a *PGAdmin) EnsureRole(role, password string) Fact {
	return Fact{
		Name: "role " + role + " exists",
		Check: func(ctx context.Context) (bool, error) {
			var one int
			err := a.conn.QueryRow(ctx, `SELECT 1 FROM pg_roles WHERE rolname = $1`, role).Scan(&one)
			if err == pgx.ErrNoRows {
				return false, nil
			}
			return err == nil, err
		},
		Apply: func(ctx context.Context) error {
			stmt := "CREATE ROLE " + pgx.Identifier{role}.Sanitize() + " LOGIN"
			if password != "" {
				stmt += " PASSWORD " + quoteLiteral(password)
			}
			_, err := a.conn.Exec(ctx, stmt)
			return err
		},
	}
}

// EnsureDatabase asserts that a database owned by the given role exists.
// Order matters: the owner role's fact must precede this one.
func (a *PGAdmin) EnsureDatabase(name, owner string) Fact {
	return Fact{
		Name: "database " + name + " exists",
		Check: func(ctx context.Context) (bool, error) {
			var one int
			err := a.conn.QueryRow(ctx, `SELECT 1 FROM pg_database WHERE datname = $1`, name).Scan(&one)
			if err == pgx.ErrNoRows {
				return false, nil
			}
			return err == nil, err
		},
		Apply: func(ctx context.Context) error {
			stmt := "CREATE DATABASE " + pgx.Identifier{name}.Sanitize()
			if owner != "" {
				stmt += " OWNER " + pgx.Identifier{owner}.Sanitize()
			}
			_, err := a.conn.Exec(ctx, stmt)
			return err
		},
	}
}

// quoteLiteral renders a single-quoted SQL string literal. CREATE ROLE does
// not accept bind parameters for the password clause.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
