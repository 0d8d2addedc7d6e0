// Package archive keeps the raw detail payloads of a run in a local sqlite
// database, so normalization bugs can be diagnosed without re-fetching.
package archive

import (
	"context"
	"database/sql"
	"strings"

	_ "embed"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

type Archive struct {
	db *sql.DB
}

func New(db *sql.DB) *Archive {
	return &Archive{db: db}
}

func Open(path string) (*Archive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	_, err = db.Exec(Schema)
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		db.Close()
		return nil, err
	}
	return New(db), nil
}

func (a *Archive) Close() error {
	return a.db.Close()
}

// NotePayload stores the raw payload of one conversation, replacing any
// payload a previous run left behind.
func (a *Archive) NotePayload(ctx context.Context, conversationId string, fetchedAt int64, payload []byte) error {
	_, err := a.db.ExecContext(
		ctx,
		`INSERT INTO raw_payloads (conversation_id, fetched_at, payload)
		 VALUES (?, ?, ?)
		 ON CONFLICT (conversation_id) DO UPDATE SET
		 fetched_at = excluded.fetched_at,
		 payload = excluded.payload`,
		conversationId, fetchedAt, string(payload),
	)
	return err
}

type Row struct {
	ConversationId string
	FetchedAt      int64
	Payload        string
}

func (a *Archive) List(ctx context.Context) ([]Row, error) {
	rows, err := a.db.QueryContext(
		ctx,
		`SELECT conversation_id, fetched_at, payload
		 FROM raw_payloads
		 ORDER BY fetched_at, conversation_id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var row Row
		err := rows.Scan(&row.ConversationId, &row.FetchedAt, &row.Payload)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
