package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"vidpress/internal/upload"
)

// UploadSessionStore persists chunked transfer state so an interrupted upload
// can resume after a restart. It implements upload.SessionStore.
type UploadSessionStore struct {
	db *sql.DB
}

// UploadSessions returns the store's view over the upload session tables.
func (s *Store) UploadSessions() *UploadSessionStore {
	return &UploadSessionStore{db: s.db}
}

// LoadSession returns the stored session and its parts for the given key, or
// (nil, nil, nil) when no session exists.
func (s *UploadSessionStore) LoadSession(ctx context.Context, key string) (*upload.StoredSession, []upload.StoredPart, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_key, file_name, content_type, size_bytes, method, state,
		       storage_key, upload_id, public_url, part_size_bytes, total_parts
		FROM upload_sessions WHERE session_key = ?`, key)

	var (
		session     upload.StoredSession
		fileName    sql.NullString
		contentType sql.NullString
		storageKey  sql.NullString
		uploadID    sql.NullString
		publicURL   sql.NullString
		method      string
		state       string
	)
	err := row.Scan(&session.Key, &fileName, &contentType, &session.SizeBytes,
		&method, &state, &storageKey, &uploadID, &publicURL,
		&session.PartSizeBytes, &session.TotalParts)
	if err == sql.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load upload session: %w", err)
	}
	session.FileName = fileName.String
	session.ContentType = contentType.String
	session.StorageKey = storageKey.String
	session.UploadID = uploadID.String
	session.PublicURL = publicURL.String
	session.Method = upload.Method(method)
	session.State = upload.State(state)

	parts, err := s.loadParts(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	return &session, parts, nil
}

func (s *UploadSessionStore) loadParts(ctx context.Context, key string) ([]upload.StoredPart, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT part_number, byte_offset, byte_length, status, etag
		FROM upload_parts WHERE session_key = ? ORDER BY part_number`, key)
	if err != nil {
		return nil, fmt.Errorf("load upload parts: %w", err)
	}
	defer rows.Close()

	var parts []upload.StoredPart
	for rows.Next() {
		var (
			part upload.StoredPart
			etag sql.NullString
		)
		var status string
		if err := rows.Scan(&part.Number, &part.Offset, &part.Length, &status, &etag); err != nil {
			return nil, fmt.Errorf("scan upload part: %w", err)
		}
		part.Status = upload.PartStatus(status)
		part.ETag = etag.String
		parts = append(parts, part)
	}
	return parts, rows.Err()
}

// SaveSession inserts or updates the session row for its key.
func (s *UploadSessionStore) SaveSession(ctx context.Context, session *upload.StoredSession) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO upload_sessions (
			session_key, file_name, content_type, size_bytes, method, state,
			storage_key, upload_id, public_url, part_size_bytes, total_parts,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_key) DO UPDATE SET
			state = excluded.state,
			storage_key = excluded.storage_key,
			upload_id = excluded.upload_id,
			public_url = excluded.public_url,
			part_size_bytes = excluded.part_size_bytes,
			total_parts = excluded.total_parts,
			updated_at = excluded.updated_at`,
		session.Key, nullableString(session.FileName), nullableString(session.ContentType),
		session.SizeBytes, string(session.Method), string(session.State),
		nullableString(session.StorageKey), nullableString(session.UploadID),
		nullableString(session.PublicURL), session.PartSizeBytes, session.TotalParts,
		now, now)
	if err != nil {
		return fmt.Errorf("save upload session: %w", err)
	}
	return nil
}

// SavePart records one part's outcome for its session.
func (s *UploadSessionStore) SavePart(ctx context.Context, sessionKey string, part upload.StoredPart) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO upload_parts (session_key, part_number, byte_offset, byte_length, status, etag)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_key, part_number) DO UPDATE SET
			status = excluded.status,
			etag = excluded.etag`,
		sessionKey, part.Number, part.Offset, part.Length,
		string(part.Status), nullableString(part.ETag))
	if err != nil {
		return fmt.Errorf("save upload part %d: %w", part.Number, err)
	}
	return nil
}

// DeleteSession removes a session and, via the cascade, its parts.
func (s *UploadSessionStore) DeleteSession(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM upload_sessions WHERE session_key = ?`, key); err != nil {
		return fmt.Errorf("delete upload session: %w", err)
	}
	return nil
}
