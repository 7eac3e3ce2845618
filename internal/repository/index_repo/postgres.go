package index_repo

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS materials (
	seq           BIGSERIAL PRIMARY KEY,
	job_name      TEXT NOT NULL,
	job_timestamp TEXT NOT NULL,
	id            TEXT NOT NULL,
	file_type     TEXT NOT NULL,
	metadata      JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS materials_job_idx ON materials (job_name, job_timestamp, seq);
`

func NewPostgresIndex(db *sql.DB) *PostgresIndex {
	return &PostgresIndex{db: db}
}

// OpenPostgresIndex connects to dsn and makes sure the schema exists.
func OpenPostgresIndex(dsn string) (*PostgresIndex, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	err = db.Ping()
	if err != nil {
		db.Close()
		return nil, err
	}

	idx := NewPostgresIndex(db)
	err = idx.Migrate()
	if err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

type PostgresIndex struct {
	db *sql.DB
}

func (i *PostgresIndex) Migrate() error {
	_, err := i.db.Exec(postgresSchema)
	return err
}

func (i *PostgresIndex) Append(jobName, jobTimestamp string, e Entry) error {
	md, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}

	_, err = i.db.Exec(
		`
		INSERT INTO materials (
			job_name,
			job_timestamp,
			id,
			file_type,
			metadata
		) VALUES (
			$1,
			$2,
			$3,
			$4,
			$5
		);
		`,
		jobName,
		jobTimestamp,
		e.ID,
		e.FileType,
		string(md),
	)
	if err != nil {
		return err
	}

	return nil
}

func (i *PostgresIndex) List(jobName, jobTimestamp string) ([]Entry, error) {
	rows, err := i.db.Query(
		`
		SELECT id, file_type, metadata
		FROM materials
		WHERE job_name = $1 AND job_timestamp = $2
		ORDER BY seq;
		`,
		jobName,
		jobTimestamp,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e  Entry
			md []byte
		)
		err = rows.Scan(&e.ID, &e.FileType, &md)
		if err != nil {
			return nil, err
		}
		err = json.Unmarshal(md, &e.Metadata)
		if err != nil {
			return nil, fmt.Errorf("parsing metadata of %s: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (i *PostgresIndex) Timestamps(jobName string) ([]string, error) {
	rows, err := i.db.Query(
		`
		SELECT DISTINCT job_timestamp
		FROM materials
		WHERE job_name = $1
		ORDER BY job_timestamp;
		`,
		jobName,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var ts string
		err = rows.Scan(&ts)
		if err != nil {
			return nil, err
		}
		out = append(out, ts)
	}
	return out, rows.Err()
}

func (i *PostgresIndex) Close() error {
	return i.db.Close()
}
