package cauldron

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// defaultReadingLimit bounds a reading listing when the caller doesn't.
const defaultReadingLimit = 2000

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL cauldron repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// GetCauldron retrieves a cauldron by ID.
func (r *PostgresRepository) GetCauldron(ctx context.Context, id string) (*Cauldron, error) {
	query := `
		SELECT
			id, name, max_volume, fill_rate, drain_rate, current_volume,
			node_id, lat, lon, created_at, updated_at
		FROM cauldrons
		WHERE id = $1
	`

	var c Cauldron
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&c.ID,
		&c.Name,
		&c.MaxVolume,
		&c.FillRate,
		&c.DrainRate,
		&c.CurrentVolume,
		&c.NodeID,
		&c.Location.Lat,
		&c.Location.Lon,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCauldronNotFound
		}
		return nil, err
	}

	return &c, nil
}

// ListCauldrons retrieves all cauldrons ordered by ID.
func (r *PostgresRepository) ListCauldrons(ctx context.Context) ([]*Cauldron, error) {
	query := `
		SELECT
			id, name, max_volume, fill_rate, drain_rate, current_volume,
			node_id, lat, lon, created_at, updated_at
		FROM cauldrons
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cauldrons []*Cauldron
	for rows.Next() {
		var c Cauldron
		err := rows.Scan(
			&c.ID,
			&c.Name,
			&c.MaxVolume,
			&c.FillRate,
			&c.DrainRate,
			&c.CurrentVolume,
			&c.NodeID,
			&c.Location.Lat,
			&c.Location.Lon,
			&c.CreatedAt,
			&c.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		cauldrons = append(cauldrons, &c)
	}

	return cauldrons, rows.Err()
}

// UpsertCauldron creates or replaces a cauldron.
func (r *PostgresRepository) UpsertCauldron(ctx context.Context, c *Cauldron) error {
	query := `
		INSERT INTO cauldrons (
			id, name, max_volume, fill_rate, drain_rate, current_volume,
			node_id, lat, lon, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			max_volume = EXCLUDED.max_volume,
			fill_rate = EXCLUDED.fill_rate,
			drain_rate = EXCLUDED.drain_rate,
			current_volume = EXCLUDED.current_volume,
			node_id = EXCLUDED.node_id,
			lat = EXCLUDED.lat,
			lon = EXCLUDED.lon,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.pool.Exec(ctx, query,
		c.ID, c.Name, c.MaxVolume, c.FillRate, c.DrainRate, c.CurrentVolume,
		c.NodeID, c.Location.Lat, c.Location.Lon, c.CreatedAt, c.UpdatedAt,
	)
	return err
}

// ListReadings retrieves readings for one cauldron, oldest first.
func (r *PostgresRepository) ListReadings(ctx context.Context, cauldronID string, q ReadingQuery) ([]Reading, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultReadingLimit
	}

	query := `
		SELECT cauldron_id, ts, volume
		FROM cauldron_readings
		WHERE cauldron_id = $1 AND ($2::timestamptz IS NULL OR ts >= $2)
		ORDER BY ts ASC
		LIMIT $3
	`

	var since interface{}
	if !q.Since.IsZero() {
		since = q.Since
	}

	rows, err := r.pool.Query(ctx, query, cauldronID, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var readings []Reading
	for rows.Next() {
		var rd Reading
		if err := rows.Scan(&rd.CauldronID, &rd.Timestamp, &rd.Volume); err != nil {
			return nil, err
		}
		readings = append(readings, rd)
	}

	return readings, rows.Err()
}

// InsertReadings appends readings in bulk using a single batch.
func (r *PostgresRepository) InsertReadings(ctx context.Context, readings []Reading) error {
	if len(readings) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, rd := range readings {
		batch.Queue(
			`INSERT INTO cauldron_readings (cauldron_id, ts, volume)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (cauldron_id, ts) DO UPDATE SET volume = EXCLUDED.volume`,
			rd.CauldronID, rd.Timestamp, rd.Volume,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range readings {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// ListEdges retrieves all connection graph edges.
func (r *PostgresRepository) ListEdges(ctx context.Context) ([]Edge, error) {
	query := `SELECT from_node, to_node, travel_minutes FROM graph_edges ORDER BY from_node, to_node`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.From, &e.To, &e.TravelMinutes); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}

	return edges, rows.Err()
}

// ReplaceEdges replaces the stored connection graph in one transaction.
func (r *PostgresRepository) ReplaceEdges(ctx context.Context, edges []Edge) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.Exec(ctx, `DELETE FROM graph_edges`); err != nil {
		return err
	}

	for _, e := range edges {
		_, err := tx.Exec(ctx,
			`INSERT INTO graph_edges (from_node, to_node, travel_minutes) VALUES ($1, $2, $3)`,
			e.From, e.To, e.TravelMinutes,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// ListCouriers retrieves the courier roster ordered by ID.
func (r *PostgresRepository) ListCouriers(ctx context.Context) ([]*Courier, error) {
	query := `SELECT id, name, capacity FROM couriers ORDER BY id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var couriers []*Courier
	for rows.Next() {
		var c Courier
		if err := rows.Scan(&c.ID, &c.Name, &c.Capacity); err != nil {
			return nil, err
		}
		couriers = append(couriers, &c)
	}

	return couriers, rows.Err()
}

// UpsertCourier creates or replaces a courier.
func (r *PostgresRepository) UpsertCourier(ctx context.Context, c *Courier) error {
	query := `
		INSERT INTO couriers (id, name, capacity)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			capacity = EXCLUDED.capacity
	`

	_, err := r.pool.Exec(ctx, query, c.ID, c.Name, c.Capacity)
	return err
}
