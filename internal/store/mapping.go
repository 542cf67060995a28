package store

import (
	"database/sql"
	"errors"
	"strings"
	"time"
)

// Mapping overrides the avatar channel a detector category name drives.
type Mapping struct {
	ID        string
	Source    string
	Target    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MappingRepository provides CRUD operations for name mappings.
type MappingRepository struct {
	db *sql.DB
}

// Mappings returns the mapping repository for this store.
func (s *Store) Mappings() *MappingRepository {
	return &MappingRepository{db: s.db}
}

// Create inserts a new mapping. It returns ErrConflict when the source name
// is already mapped.
func (r *MappingRepository) Create(m *Mapping) error {
	now := time.Now()
	m.CreatedAt = now
	m.UpdatedAt = now

	_, err := r.db.Exec(
		`INSERT INTO name_mappings (id, source, target, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.Source, m.Target, m.CreatedAt, m.UpdatedAt,
	)
	return translate(err)
}

// GetByID retrieves a mapping by its ID.
func (r *MappingRepository) GetByID(id string) (*Mapping, error) {
	return r.get(`SELECT id, source, target, created_at, updated_at
		 FROM name_mappings WHERE id = ?`, id)
}

// GetBySource retrieves the mapping for a detector category name.
func (r *MappingRepository) GetBySource(source string) (*Mapping, error) {
	return r.get(`SELECT id, source, target, created_at, updated_at
		 FROM name_mappings WHERE source = ?`, source)
}

func (r *MappingRepository) get(query string, arg string) (*Mapping, error) {
	m := &Mapping{}
	err := r.db.QueryRow(query, arg).Scan(&m.ID, &m.Source, &m.Target, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return m, nil
}

// List retrieves all mappings ordered by source name.
func (r *MappingRepository) List() ([]*Mapping, error) {
	rows, err := r.db.Query(
		`SELECT id, source, target, created_at, updated_at
		 FROM name_mappings ORDER BY source`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mappings []*Mapping
	for rows.Next() {
		m := &Mapping{}
		if err := rows.Scan(&m.ID, &m.Source, &m.Target, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		mappings = append(mappings, m)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return mappings, nil
}

// Overrides returns every mapping as source -> target.
func (r *MappingRepository) Overrides() (map[string]string, error) {
	mappings, err := r.List()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(mappings))
	for _, m := range mappings {
		out[m.Source] = m.Target
	}
	return out, nil
}

// Update updates an existing mapping.
func (r *MappingRepository) Update(m *Mapping) error {
	m.UpdatedAt = time.Now()

	result, err := r.db.Exec(
		`UPDATE name_mappings SET source = ?, target = ?, updated_at = ?
		 WHERE id = ?`,
		m.Source, m.Target, m.UpdatedAt, m.ID,
	)
	if err != nil {
		return translate(err)
	}

	return requireRow(result)
}

// Delete removes a mapping by its ID.
func (r *MappingRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM name_mappings WHERE id = ?`, id)
	if err != nil {
		return err
	}

	return requireRow(result)
}

func requireRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// translate maps driver constraint errors onto store errors.
func translate(err error) error {
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return ErrConflict
	}
	return err
}
