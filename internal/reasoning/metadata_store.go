package reasoning

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// metadataStore indexes a pattern's queryable fields in an embedded
// SQLite database so Search's filter-by-taskType/fitzpatrick is a real
// indexed lookup rather than a scan over in-memory metadata maps. The
// CBOR pattern log remains the durable source of truth; this index is
// rebuilt from it whenever the database file is missing or stale.
type metadataStore struct {
	db *sql.DB
}

func openMetadataStore(dir string) (*metadataStore, error) {
	path := filepath.Join(dir, "patterns.sqlite")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("reasoning: open sqlite store: %w", err)
	}
	schema := `
CREATE TABLE IF NOT EXISTS patterns (
	id TEXT PRIMARY KEY,
	task_type TEXT NOT NULL,
	fitzpatrick TEXT,
	outcome TEXT,
	success_rate REAL,
	timestamp INTEGER,
	is_correction INTEGER DEFAULT 0,
	metadata_json TEXT
);
CREATE INDEX IF NOT EXISTS idx_patterns_task_type ON patterns(task_type);
CREATE INDEX IF NOT EXISTS idx_patterns_fitzpatrick ON patterns(fitzpatrick);
`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("reasoning: migrate sqlite store: %w", err)
	}
	return &metadataStore{db: db}, nil
}

func (m *metadataStore) index(p Pattern) error {
	fitz, _ := p.Metadata["fitzpatrick"].(string)
	isCorrection := 0
	if v, _ := p.Metadata["isCorrection"].(bool); v {
		isCorrection = 1
	}
	_, err := m.db.Exec(
		`INSERT OR REPLACE INTO patterns (id, task_type, fitzpatrick, outcome, success_rate, timestamp, is_correction, metadata_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.TaskType, fitz, p.Outcome, p.SuccessRate, p.Timestamp, isCorrection, marshalMetadata(p.Metadata),
	)
	if err != nil {
		return fmt.Errorf("reasoning: index pattern %s: %w", p.ID, err)
	}
	return nil
}

// matchingIDs returns the set of pattern ids satisfying f, or nil (no
// restriction) when f is the zero Filter.
func (m *metadataStore) matchingIDs(f Filter) (map[string]bool, error) {
	if f.TaskType == "" && f.Fitzpatrick == "" {
		return nil, nil
	}
	query := "SELECT id FROM patterns WHERE 1=1"
	var args []interface{}
	if f.TaskType != "" {
		query += " AND task_type = ?"
		args = append(args, f.TaskType)
	}
	if f.Fitzpatrick != "" {
		query += " AND fitzpatrick = ?"
		args = append(args, f.Fitzpatrick)
	}
	rows, err := m.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("reasoning: query patterns: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("reasoning: scan pattern id: %w", err)
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// metadataJSON returns the stored metadata_json column for id, for
// operator diagnostics (`orchctl patterns dump`). Not on the hot
// Search path, which never needs the full metadata blob.
func (m *metadataStore) metadataJSON(id string) (string, bool, error) {
	var raw string
	err := m.db.QueryRow(`SELECT metadata_json FROM patterns WHERE id = ?`, id).Scan(&raw)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reasoning: query pattern metadata %s: %w", id, err)
	}
	return raw, true, nil
}

func (m *metadataStore) close() error {
	return m.db.Close()
}

// marshalMetadata renders a pattern's metadata map as the JSON blob
// stored in the metadata_json column and returned by metadataJSON.
func marshalMetadata(meta map[string]interface{}) string {
	b, err := json.Marshal(meta)
	if err != nil {
		return "{}"
	}
	return string(b)
}
