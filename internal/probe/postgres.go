package probe

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// PostgresProber dials the admin DSN and pings. It is the call-style
// counterpart of running pg_isready: a successful ping is the success
// signal, the connection is dropped immediately after.
type PostgresProber struct {
	DSN string
}

func (p PostgresProber) Probe(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, p.DSN)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close(ctx) }()
	return conn.Ping(ctx)
}

func (p PostgresProber) Describe() string { return "postgres" }
