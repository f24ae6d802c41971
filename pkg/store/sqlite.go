package store

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/tablesage-ai/tablesage/pkg/logging"
	"github.com/tablesage-ai/tablesage/pkg/models"
)

// SQLiteStore runs queries against a local SQLite file. Useful for working
// with exported sheets without standing up a server.
type SQLiteStore struct {
	path   string
	logger *zap.Logger
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a store for the database file at path.
func NewSQLiteStore(path string, logger *zap.Logger) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite database path is required")
	}
	return &SQLiteStore{
		path:   path,
		logger: logger.Named("store.sqlite"),
	}, nil
}

func (s *SQLiteStore) Connect(ctx context.Context) (Conn, error) {
	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}
	return &sqliteConn{db: db, logger: s.logger}, nil
}

type sqliteConn struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ Conn = (*sqliteConn)(nil)

func (c *sqliteConn) Query(ctx context.Context, query string, limit int) (*RowSet, error) {
	queryToRun := query
	if limit > 0 {
		queryToRun = fmt.Sprintf("SELECT * FROM (%s) AS _limited LIMIT %d", query, limit)
	}

	rows, err := c.db.QueryContext(ctx, queryToRun)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	fields, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read column names: %w", err)
	}

	result := make([]models.RowRecord, 0)
	for rows.Next() {
		values := make([]any, len(fields))
		ptrs := make([]any, len(fields))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		record := make(models.RowRecord, len(fields))
		for i, name := range fields {
			record[name] = models.NormalizeValue(values[i])
		}
		result = append(result, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	c.logger.Debug("query executed",
		zap.String("query", logging.SanitizeQuery(query)),
		zap.Int("rows", len(result)),
		zap.Int("columns", len(fields)))

	return &RowSet{Fields: fields, Rows: result, RowCount: len(result)}, nil
}

func (c *sqliteConn) Close() error {
	return c.db.Close()
}
