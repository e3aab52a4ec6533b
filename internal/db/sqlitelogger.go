package db

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// statementConnector implements driver.Connector on top of the sqlite3 driver
// and wraps every connection so each statement is logged with its timing.
type statementConnector struct {
	dsn    string
	driver *sqlite3.SQLiteDriver
	logger *slog.Logger
}

type statementConn struct {
	conn   *sqlite3.SQLiteConn
	logger *slog.Logger
}

type statementStmt struct {
	stmt   *sqlite3.SQLiteStmt
	query  string
	logger *slog.Logger
}

// NewLoggingConnector returns a driver.Connector that logs every statement
// (SQL, args, duration, error) at debug level. Open it with sql.OpenDB.
// A nil logger falls back to slog.Default().
func NewLoggingConnector(dsn string, logger *slog.Logger) (driver.Connector, error) {
	if dsn == "" {
		return nil, errors.New("sqlite dsn is empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &statementConnector{dsn: dsn, driver: &sqlite3.SQLiteDriver{}, logger: logger}, nil
}

func (c *statementConnector) Driver() driver.Driver {
	return c.driver
}

func (c *statementConnector) Connect(ctx context.Context) (driver.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	conn, err := c.driver.Open(c.dsn)
	if err != nil {
		return nil, err
	}
	sc, ok := conn.(*sqlite3.SQLiteConn)
	if !ok {
		_ = conn.Close()
		return nil, fmt.Errorf("unexpected sqlite connection type %T", conn)
	}
	c.logger.Debug("sql connection opened")
	return &statementConn{conn: sc, logger: c.logger}, nil
}

func (c *statementConn) Prepare(query string) (driver.Stmt, error) {
	return c.PrepareContext(context.Background(), query)
}

func (c *statementConn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	stmt, err := c.conn.PrepareContext(ctx, query)
	if err != nil {
		c.logger.Debug("sql prepare failed", "sql", query, "error", err)
		return nil, err
	}
	ss, ok := stmt.(*sqlite3.SQLiteStmt)
	if !ok {
		_ = stmt.Close()
		return nil, fmt.Errorf("unexpected sqlite statement type %T", stmt)
	}
	return &statementStmt{stmt: ss, query: query, logger: c.logger}, nil
}

func (c *statementConn) Close() error {
	c.logger.Debug("sql connection closed")
	return c.conn.Close()
}

// Begin is required by driver.Conn; database/sql calls BeginTx.
func (c *statementConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *statementConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	return c.conn.BeginTx(ctx, opts)
}

// Ping implements driver.Pinger so PingContext reaches the sqlite connection.
func (c *statementConn) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

// Exec and Query are required by driver.Stmt; database/sql uses the context
// variants, so these only adapt their arguments.
func (s *statementStmt) Exec(args []driver.Value) (driver.Result, error) {
	return s.ExecContext(context.Background(), valuesToNamed(args))
}

func (s *statementStmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	start := time.Now()
	res, err := s.stmt.ExecContext(ctx, args)
	s.log("exec", args, start, err)
	return res, err
}

func (s *statementStmt) Query(args []driver.Value) (driver.Rows, error) {
	return s.QueryContext(context.Background(), valuesToNamed(args))
}

func (s *statementStmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	start := time.Now()
	rows, err := s.stmt.QueryContext(ctx, args)
	s.log("query", args, start, err)
	return rows, err
}

func (s *statementStmt) Close() error {
	return s.stmt.Close()
}

func (s *statementStmt) NumInput() int {
	return s.stmt.NumInput()
}

func (s *statementStmt) log(op string, args []driver.NamedValue, start time.Time, err error) {
	attrs := []any{
		"op", op,
		"sql", s.query,
		"args", namedToStrings(args),
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	s.logger.Debug("sql", attrs...)
}

func namedToStrings(args []driver.NamedValue) []string {
	out := make([]string, len(args))
	for i, a := range args {
		if a.Name != "" {
			out[i] = a.Name + "=" + formatArg(a.Value)
		} else {
			out[i] = formatArg(a.Value)
		}
	}
	return out
}

// valuesToNamed numbers positional args from 1, as database/sql does.
func valuesToNamed(args []driver.Value) []driver.NamedValue {
	out := make([]driver.NamedValue, len(args))
	for i, v := range args {
		out[i] = driver.NamedValue{Ordinal: i + 1, Value: v}
	}
	return out
}

func formatArg(v driver.Value) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(t)
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return fmt.Sprint(t)
	}
}
