package store

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paulmach/orb"
	"github.com/stwalsh4118/ng911/internal/config"
	"github.com/stwalsh4118/ng911/internal/models"
)

// querier is the subset of pgx shared by pools and transactions, letting the
// same query methods run inside or outside an edit session.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is the PostGIS-backed FeatureStore. Each logical layer is one
// table of shape (oid bigserial, attrs jsonb, geom geometry). Attribute
// filters compile to jsonb containment so deployments can add custom fields
// without schema migrations.
type PostgresStore struct {
	Pool *pgxpool.Pool
	srid int
}

// NewPostgresStore creates a PostGIS connection pool from the database
// configuration, verifies connectivity, and returns the store.
func NewPostgresStore(ctx context.Context, cfg config.DatabaseConfig, srid int) (*PostgresStore, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MinConns = int32(cfg.PoolMin)
	poolConfig.MaxConns = int32(cfg.PoolMax)
	poolConfig.ConnConfig.ConnectTimeout = 5 * time.Second
	poolConfig.MaxConnIdleTime = 30 * time.Second
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{Pool: pool, srid: srid}, nil
}

// Ping checks that the database connection is alive.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}

var identPattern = regexp.MustCompile(`[^a-z0-9_]`)

// tableName maps a logical layer name to its physical table name.
func tableName(layer string) string {
	return identPattern.ReplaceAllString(strings.ToLower(layer), "_")
}

func (s *PostgresStore) q(ctx context.Context) querier {
	if tx := sessionFrom(ctx); tx != nil {
		return tx
	}
	return s.Pool
}

func (s *PostgresStore) Get(ctx context.Context, layer string, oid int64) (*models.Feature, error) {
	sql := fmt.Sprintf(
		`SELECT oid, attrs, ST_AsGeoJSON(geom) FROM %s WHERE oid = $1`,
		tableName(layer),
	)

	f, err := s.scanOne(s.q(ctx).QueryRow(ctx, sql, oid))
	if err != nil {
		return nil, fmt.Errorf("failed to get feature %d from %s: %w", oid, layer, err)
	}
	return f, nil
}

func (s *PostgresStore) Query(ctx context.Context, layer string, filter Filter) ([]*models.Feature, error) {
	sql := fmt.Sprintf(`SELECT oid, attrs, ST_AsGeoJSON(geom) FROM %s`, tableName(layer))

	var args []any
	if len(filter) > 0 {
		filterJSON, err := json.Marshal(filter)
		if err != nil {
			return nil, fmt.Errorf("failed to encode filter: %w", err)
		}
		sql += ` WHERE attrs @> $1`
		args = append(args, string(filterJSON))
	}
	sql += ` ORDER BY oid`

	return s.queryFeatures(ctx, layer, sql, args...)
}

func (s *PostgresStore) QueryRange(ctx context.Context, layer string, minOID, maxOID int64) ([]*models.Feature, error) {
	sql := fmt.Sprintf(
		`SELECT oid, attrs, ST_AsGeoJSON(geom) FROM %s WHERE oid BETWEEN $1 AND $2 ORDER BY oid`,
		tableName(layer),
	)
	return s.queryFeatures(ctx, layer, sql, minOID, maxOID)
}

func (s *PostgresStore) QueryWithinDistance(ctx context.Context, layer string, pt orb.Point, radius float64, filter Filter) ([]*models.Feature, error) {
	ptJSON, err := models.MarshalGeometry(pt)
	if err != nil {
		return nil, fmt.Errorf("failed to encode query point: %w", err)
	}

	sql := fmt.Sprintf(`
		SELECT oid, attrs, ST_AsGeoJSON(geom)
		FROM %s
		WHERE ST_DWithin(geom, ST_SetSRID(ST_GeomFromGeoJSON($1), %d), $2)`,
		tableName(layer), s.srid,
	)

	args := []any{string(ptJSON), radius}
	if len(filter) > 0 {
		filterJSON, err := json.Marshal(filter)
		if err != nil {
			return nil, fmt.Errorf("failed to encode filter: %w", err)
		}
		sql += ` AND attrs @> $3`
		args = append(args, string(filterJSON))
	}
	sql += fmt.Sprintf(` ORDER BY ST_Distance(geom, ST_SetSRID(ST_GeomFromGeoJSON($1), %d))`, s.srid)

	return s.queryFeatures(ctx, layer, sql, args...)
}

func (s *PostgresStore) Intersecting(ctx context.Context, layer string, pt orb.Point) ([]*models.Feature, error) {
	ptJSON, err := models.MarshalGeometry(pt)
	if err != nil {
		return nil, fmt.Errorf("failed to encode query point: %w", err)
	}

	// smallest boundary wins when polygons overlap
	sql := fmt.Sprintf(`
		SELECT oid, attrs, ST_AsGeoJSON(geom)
		FROM %s
		WHERE ST_Intersects(geom, ST_SetSRID(ST_GeomFromGeoJSON($1), %d))
		ORDER BY ST_Area(geom)`,
		tableName(layer), s.srid,
	)

	return s.queryFeatures(ctx, layer, sql, string(ptJSON))
}

func (s *PostgresStore) Count(ctx context.Context, layer string, filter Filter) (int64, error) {
	sql := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, tableName(layer))

	var args []any
	if len(filter) > 0 {
		filterJSON, err := json.Marshal(filter)
		if err != nil {
			return 0, fmt.Errorf("failed to encode filter: %w", err)
		}
		sql += ` WHERE attrs @> $1`
		args = append(args, string(filterJSON))
	}

	var count int64
	if err := s.q(ctx).QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count features in %s: %w", layer, err)
	}
	return count, nil
}

func (s *PostgresStore) OIDRange(ctx context.Context, layer string) (int64, int64, error) {
	sql := fmt.Sprintf(
		`SELECT COALESCE(MIN(oid), 0), COALESCE(MAX(oid), 0) FROM %s`,
		tableName(layer),
	)

	var min, max int64
	if err := s.q(ctx).QueryRow(ctx, sql).Scan(&min, &max); err != nil {
		return 0, 0, fmt.Errorf("failed to get OID range for %s: %w", layer, err)
	}
	return min, max, nil
}

func (s *PostgresStore) Insert(ctx context.Context, layer string, f *models.Feature) (int64, error) {
	attrsJSON, err := json.Marshal(f.Attributes())
	if err != nil {
		return 0, fmt.Errorf("failed to encode attributes: %w", err)
	}

	var geomJSON *string
	if f.Geometry != nil {
		data, err := models.MarshalGeometry(f.Geometry)
		if err != nil {
			return 0, fmt.Errorf("failed to encode geometry: %w", err)
		}
		str := string(data)
		geomJSON = &str
	}

	sql := fmt.Sprintf(`
		INSERT INTO %s (attrs, geom)
		VALUES ($1, ST_SetSRID(ST_GeomFromGeoJSON($2), %d))
		RETURNING oid`,
		tableName(layer), s.srid,
	)

	var oid int64
	if err := s.q(ctx).QueryRow(ctx, sql, string(attrsJSON), geomJSON).Scan(&oid); err != nil {
		return 0, fmt.Errorf("failed to insert feature into %s: %w", layer, err)
	}

	f.OID = oid
	return oid, nil
}

func (s *PostgresStore) Update(ctx context.Context, layer string, f *models.Feature) error {
	if f.OID == 0 {
		return fmt.Errorf("cannot update feature in %s without an OID", layer)
	}

	attrsJSON, err := json.Marshal(f.Attributes())
	if err != nil {
		return fmt.Errorf("failed to encode attributes: %w", err)
	}

	var geomJSON *string
	if f.Geometry != nil {
		data, err := models.MarshalGeometry(f.Geometry)
		if err != nil {
			return fmt.Errorf("failed to encode geometry: %w", err)
		}
		str := string(data)
		geomJSON = &str
	}

	sql := fmt.Sprintf(`
		UPDATE %s
		SET attrs = $1, geom = ST_SetSRID(ST_GeomFromGeoJSON($2), %d)
		WHERE oid = $3`,
		tableName(layer), s.srid,
	)

	tag, err := s.q(ctx).Exec(ctx, sql, string(attrsJSON), geomJSON, f.OID)
	if err != nil {
		return fmt.Errorf("failed to update feature %d in %s: %w", f.OID, layer, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("feature %d not found in %s", f.OID, layer)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, layer string, oid int64) error {
	sql := fmt.Sprintf(`DELETE FROM %s WHERE oid = $1`, tableName(layer))
	if _, err := s.q(ctx).Exec(ctx, sql, oid); err != nil {
		return fmt.Errorf("failed to delete feature %d from %s: %w", oid, layer, err)
	}
	return nil
}

func (s *PostgresStore) queryFeatures(ctx context.Context, layer, sql string, args ...any) ([]*models.Feature, error) {
	rows, err := s.q(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", layer, err)
	}
	defer rows.Close()

	features := []*models.Feature{}
	for rows.Next() {
		f, err := scanFeature(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feature from %s: %w", layer, err)
		}
		features = append(features, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s rows: %w", layer, err)
	}

	return features, nil
}

func (s *PostgresStore) scanOne(row pgx.Row) (*models.Feature, error) {
	f, err := scanFeatureRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return f, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFeature(r rowScanner) (*models.Feature, error) {
	var oid int64
	var attrsJSON []byte
	var geomJSON *string

	if err := r.Scan(&oid, &attrsJSON, &geomJSON); err != nil {
		return nil, err
	}

	attrs := map[string]interface{}{}
	if len(attrsJSON) > 0 {
		if err := json.Unmarshal(attrsJSON, &attrs); err != nil {
			return nil, fmt.Errorf("failed to decode attributes: %w", err)
		}
	}

	var geom orb.Geometry
	if geomJSON != nil {
		g, err := models.UnmarshalGeometry([]byte(*geomJSON))
		if err != nil {
			return nil, fmt.Errorf("failed to decode geometry: %w", err)
		}
		geom = g
	}

	return models.FromRow(oid, geom, attrs), nil
}

func scanFeatureRow(row pgx.Row) (*models.Feature, error) {
	return scanFeature(row)
}
