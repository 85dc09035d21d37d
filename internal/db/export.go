package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/gridpath/internal/grid"
)

// Export describes one stored snapshot.
type Export struct {
	ID        string    `json:"export_id"`
	TakenAt   time.Time `json:"taken_at"`
	CellCount int       `json:"cell_count"`
	EdgeCount int       `json:"edge_count"`
}

// ExportSnapshot writes snap in a single transaction and returns the new
// export id. Cell ids are stored bit-for-bit as signed integers.
func (db *DB) ExportSnapshot(ctx context.Context, snap grid.Snapshot) (string, error) {
	id := uuid.NewString()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin export: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO exports (export_id, taken_at, cell_count, edge_count) VALUES (?, ?, ?, ?)`,
		id, snap.TakenAt.UTC(), len(snap.Cells), snap.EdgeCount(),
	); err != nil {
		return "", fmt.Errorf("insert export: %w", err)
	}

	cellStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO cells (export_id, cell_id, coord_x, coord_y, point_x, point_y, out_degree)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare cells: %w", err)
	}
	defer cellStmt.Close()

	edgeStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO edges (export_id, origin_id, dest_id, length, samples, weight)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare edges: %w", err)
	}
	defer edgeStmt.Close()

	for _, c := range snap.Cells {
		if _, err := cellStmt.ExecContext(ctx,
			id, int64(c.ID), c.CoordX, c.CoordY, c.PointX, c.PointY, len(c.Edges),
		); err != nil {
			return "", fmt.Errorf("insert %s: %w", c.ID, err)
		}
		for _, n := range c.Edges {
			if _, err := edgeStmt.ExecContext(ctx,
				id, int64(c.ID), int64(n.ID), n.Edge.Length, n.Edge.Samples, n.Edge.Weight(),
			); err != nil {
				return "", fmt.Errorf("insert edge %s->%s: %w", c.ID, n.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit export: %w", err)
	}
	return id, nil
}

// ListExports returns stored exports, newest first.
func (db *DB) ListExports(ctx context.Context) ([]Export, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT export_id, taken_at, cell_count, edge_count FROM exports ORDER BY taken_at DESC, export_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Export
	for rows.Next() {
		var e Export
		var takenAt sql.NullTime
		if err := rows.Scan(&e.ID, &takenAt, &e.CellCount, &e.EdgeCount); err != nil {
			return nil, err
		}
		e.TakenAt = takenAt.Time
		out = append(out, e)
	}
	return out, rows.Err()
}
