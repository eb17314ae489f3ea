package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Simplici0/itabus/internal/pricing"
)

// StoredProject is a priced project as persisted, with its owner.
type StoredProject struct {
	pricing.Project
	ID        string
	OwnerID   int64
	OwnerName string
	CreatedAt time.Time
}

// ProjectFilter narrows List. A zero OwnerID lists every owner's projects.
type ProjectFilter struct {
	OwnerID int64
	Query   string
}

// ProjectStore persists priced projects and their line snapshots.
type ProjectStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewProjectStore returns a ProjectStore backed by db.
func NewProjectStore(db *sql.DB) *ProjectStore {
	return &ProjectStore{db: db, now: time.Now}
}

// Create stores the project header and its line snapshots in one transaction.
func (s *ProjectStore) Create(ownerID int64, p pricing.Project) (StoredProject, error) {
	stored := StoredProject{
		Project:   p,
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		CreatedAt: s.now().UTC(),
	}

	tx, err := s.db.Begin()
	if err != nil {
		return StoredProject{}, fmt.Errorf("begin project transaction: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO projects (id, name, owner_id, total_cost, min_price, target_price, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		stored.ID,
		p.Name,
		ownerID,
		p.TotalCost.String(),
		p.MinPrice.String(),
		p.TargetPrice.String(),
		formatTimestamp(stored.CreatedAt),
	); err != nil {
		_ = tx.Rollback()
		return StoredProject{}, fmt.Errorf("insert project: %w", err)
	}

	for i, line := range p.Items {
		if _, err := tx.Exec(`
			INSERT INTO project_items (project_id, position, item_id, item_name, period, unit_cost, quantity, duration, total_cost)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			stored.ID,
			i,
			line.ItemID,
			line.ItemName,
			string(line.Period),
			line.UnitCost.String(),
			line.Quantity,
			line.Duration,
			line.TotalCost.String(),
		); err != nil {
			_ = tx.Rollback()
			return StoredProject{}, fmt.Errorf("insert project line %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return StoredProject{}, fmt.Errorf("commit project transaction: %w", err)
	}

	return stored, nil
}

// List returns projects newest first. Query matches the project name.
func (s *ProjectStore) List(f ProjectFilter) ([]StoredProject, error) {
	search := "%" + f.Query + "%"
	rows, err := s.db.Query(`
		SELECT p.id, p.name, p.owner_id, COALESCE(u.username, ''), p.total_cost, p.min_price, p.target_price, p.created_at
		FROM projects p
		LEFT JOIN users u ON u.id = p.owner_id
		WHERE (? = 0 OR p.owner_id = ?)
			AND (? = '' OR p.name LIKE ?)
		ORDER BY p.created_at DESC, p.rowid DESC
	`, f.OwnerID, f.OwnerID, f.Query, search)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}

	projects := make([]StoredProject, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	rows.Close()

	for i := range projects {
		lines, err := s.lines(projects[i].ID)
		if err != nil {
			return nil, err
		}
		projects[i].Items = lines
	}

	return projects, nil
}

// Get returns the project with its lines, or ErrNotFound.
func (s *ProjectStore) Get(id string) (StoredProject, error) {
	row := s.db.QueryRow(`
		SELECT p.id, p.name, p.owner_id, COALESCE(u.username, ''), p.total_cost, p.min_price, p.target_price, p.created_at
		FROM projects p
		LEFT JOIN users u ON u.id = p.owner_id
		WHERE p.id = ?
	`, id)

	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredProject{}, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return StoredProject{}, err
	}

	if p.Items, err = s.lines(id); err != nil {
		return StoredProject{}, err
	}
	return p, nil
}

// Delete removes a project and, through the foreign key cascade, its lines.
func (s *ProjectStore) Delete(id string) error {
	result, err := s.db.Exec(`DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *ProjectStore) lines(projectID string) ([]pricing.Line, error) {
	rows, err := s.db.Query(`
		SELECT item_id, item_name, period, unit_cost, quantity, duration, total_cost
		FROM project_items
		WHERE project_id = ?
		ORDER BY position
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("query project lines: %w", err)
	}
	defer rows.Close()

	lines := make([]pricing.Line, 0)
	for rows.Next() {
		var (
			l      pricing.Line
			period string
		)
		if err := rows.Scan(&l.ItemID, &l.ItemName, &period, &l.UnitCost, &l.Quantity, &l.Duration, &l.TotalCost); err != nil {
			return nil, fmt.Errorf("scan project line: %w", err)
		}
		l.Period = pricing.Period(period)
		lines = append(lines, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate project lines: %w", err)
	}
	return lines, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (StoredProject, error) {
	var (
		p         StoredProject
		createdAt string
	)
	err := row.Scan(&p.ID, &p.Name, &p.OwnerID, &p.OwnerName, &p.TotalCost, &p.MinPrice, &p.TargetPrice, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredProject{}, err
	}
	if err != nil {
		return StoredProject{}, fmt.Errorf("scan project: %w", err)
	}

	if p.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return StoredProject{}, fmt.Errorf("parse project created_at %q: %w", createdAt, err)
	}
	return p, nil
}
