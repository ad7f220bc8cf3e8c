package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/loykin/bootstrapr/internal/journal"
)

// Sink sends journal events to ClickHouse for fleet-level bootstrap audit
// (many containers, one analytics store).
type Sink struct {
	conn  driver.Conn
	table string
}

// New connects to addr (host:port). The target table must exist; events are
// append-only. The table name is restricted to a plain identifier since it
// is interpolated into the insert statement.
func New(addr, database, username, password, table string) (*Sink, error) {
	if database == "" {
		database = "default"
	}
	if username == "" {
		username = "default"
	}
	if table == "" {
		table = "bootstrap_journal"
	}
	if !validIdentifier(table) {
		return nil, fmt.Errorf("clickhouse table name %q is not a valid identifier", table)
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{Database: database, Username: username, Password: password},
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse connect: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	return &Sink{conn: conn, table: table}, nil
}

// validIdentifier accepts [A-Za-z_][A-Za-z0-9_]* only.
func validIdentifier(s string) bool {
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return len(s) > 0
}

func (s *Sink) Send(ctx context.Context, e journal.Event) error {
	query := fmt.Sprintf(
		`INSERT INTO %s (occurred_at, event, dependency, detail) VALUES (?, ?, ?, ?)`, s.table)
	if err := s.conn.Exec(ctx, query, e.OccurredAt, string(e.Type), e.Dependency, e.Detail); err != nil {
		return fmt.Errorf("clickhouse insert: %w", err)
	}
	return nil
}

func (s *Sink) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
