package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/tablesage-ai/tablesage/pkg/logging"
	"github.com/tablesage-ai/tablesage/pkg/models"
)

// PostgresStore runs queries against a PostgreSQL database via pgx pooled
// connections.
type PostgresStore struct {
	connString string
	logger     *zap.Logger
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a store for the given connection string. The
// pool is created lazily on Connect.
func NewPostgresStore(connString string, logger *zap.Logger) (*PostgresStore, error) {
	if connString == "" {
		return nil, fmt.Errorf("postgres connection string is required")
	}
	log := logger.Named("store.postgres")
	log.Debug("postgres store configured",
		zap.String("target", logging.SanitizeConnectionString(connString)))
	return &PostgresStore{
		connString: connString,
		logger:     log,
	}, nil
}

func (s *PostgresStore) Connect(ctx context.Context) (Conn, error) {
	pool, err := pgxpool.New(ctx, s.connString)
	if err != nil {
		s.logger.Error("postgres connect failed",
			zap.String("error", logging.SanitizeError(err)))
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		s.logger.Error("postgres ping failed",
			zap.String("error", logging.SanitizeError(err)))
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &postgresConn{pool: pool, logger: s.logger}, nil
}

type postgresConn struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

var _ Conn = (*postgresConn)(nil)

func (c *postgresConn) Query(ctx context.Context, query string, limit int) (*RowSet, error) {
	queryToRun := query
	if limit > 0 {
		queryToRun = fmt.Sprintf("SELECT * FROM (%s) AS _limited LIMIT %d", query, limit)
	}

	rows, err := c.pool.Query(ctx, queryToRun)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	fields := make([]string, len(fieldDescs))
	for i, fd := range fieldDescs {
		fields[i] = string(fd.Name)
	}

	result := make([]models.RowRecord, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row values: %w", err)
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

func (c *postgresConn) Close() error {
	c.pool.Close()
	return nil
}
