package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"vidpress/internal/config"
)

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("catalog: not found")

// ErrLocked indicates another process holds the catalog write lock.
var ErrLocked = errors.New("catalog: another vidpress process holds the catalog lock")

// Store manages asset and upload-session persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
	lock *flock.Flock
}

// Open initializes or connects to the catalog database for read-write use.
// A file lock guards against concurrent writers; use OpenReadOnly for
// inspection commands that must not block a running publish.
func Open(cfg *config.Config) (*Store, error) {
	store, err := open(cfg)
	if err != nil {
		return nil, err
	}

	lock := flock.New(filepath.Join(cfg.Paths.DataDir, "catalog.lock"))
	ok, err := lock.TryLock()
	if err != nil {
		_ = store.db.Close()
		return nil, fmt.Errorf("acquire catalog lock: %w", err)
	}
	if !ok {
		_ = store.db.Close()
		return nil, ErrLocked
	}
	store.lock = lock
	return store, nil
}

// OpenReadOnly connects to the catalog database without taking the write lock.
func OpenReadOnly(cfg *config.Config) (*Store, error) {
	return open(cfg)
}

func open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "catalog.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection and releases the write lock.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	if s.lock != nil {
		_ = s.lock.Unlock()
		s.lock = nil
	}
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the catalog database location.
func (s *Store) Path() string {
	return s.path
}

// CreateAsset inserts a new asset record. A zero ID is assigned a fresh UUID.
func (s *Store) CreateAsset(ctx context.Context, asset *Asset) (*Asset, error) {
	if asset == nil {
		return nil, errors.New("catalog: asset is nil")
	}
	if asset.ID == uuid.Nil {
		asset.ID = uuid.New()
	}
	if asset.Status == "" {
		asset.Status = StatusDraft
	}
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO assets (
            id, title, description, file_name, content_type, size_bytes,
            storage_key, public_url, stream_asset_id, thumbnail_url, status,
            progress_step, progress_percent, progress_message, error_message,
            transcription_state, speaker_count, transcript_text, caption_url,
            created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		asset.ID.String(),
		asset.Title,
		nullableString(asset.Description),
		nullableString(asset.FileName),
		nullableString(asset.ContentType),
		asset.SizeBytes,
		nullableString(asset.StorageKey),
		nullableString(asset.PublicURL),
		nullableString(asset.StreamAssetID),
		nullableString(asset.ThumbnailURL),
		string(asset.Status),
		nullableString(asset.ProgressStep),
		asset.ProgressPercent,
		nullableString(asset.ProgressMessage),
		nullableString(asset.ErrorMessage),
		nullableString(string(asset.TranscriptionState)),
		asset.SpeakerCount,
		nullableString(asset.TranscriptText),
		nullableString(asset.CaptionURL),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert asset: %w", err)
	}

	return s.GetAsset(ctx, asset.ID)
}

// UpdateAsset persists the mutable fields of an existing asset record.
func (s *Store) UpdateAsset(ctx context.Context, asset *Asset) error {
	if asset == nil || asset.ID == uuid.Nil {
		return errors.New("catalog: asset id is required")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.db.ExecContext(
		ctx,
		`UPDATE assets SET
            title = ?, description = ?, file_name = ?, content_type = ?,
            size_bytes = ?, storage_key = ?, public_url = ?, stream_asset_id = ?,
            thumbnail_url = ?, status = ?, progress_step = ?, progress_percent = ?,
            progress_message = ?, error_message = ?, transcription_state = ?,
            speaker_count = ?, transcript_text = ?, caption_url = ?, updated_at = ?
        WHERE id = ?`,
		asset.Title,
		nullableString(asset.Description),
		nullableString(asset.FileName),
		nullableString(asset.ContentType),
		asset.SizeBytes,
		nullableString(asset.StorageKey),
		nullableString(asset.PublicURL),
		nullableString(asset.StreamAssetID),
		nullableString(asset.ThumbnailURL),
		string(asset.Status),
		nullableString(asset.ProgressStep),
		asset.ProgressPercent,
		nullableString(asset.ProgressMessage),
		nullableString(asset.ErrorMessage),
		nullableString(string(asset.TranscriptionState)),
		asset.SpeakerCount,
		nullableString(asset.TranscriptText),
		nullableString(asset.CaptionURL),
		now,
		asset.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("update asset: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update asset rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	asset.UpdatedAt = time.Now().UTC()
	return nil
}

// GetAsset fetches an asset by identifier.
func (s *Store) GetAsset(ctx context.Context, id uuid.UUID) (*Asset, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+assetColumns+` FROM assets WHERE id = ?`, id.String())
	asset, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get asset: %w", err)
	}
	return asset, nil
}

// FindByStorageKey fetches the asset referencing the given stored object, if any.
// Publish re-entry uses this to update the existing record instead of
// duplicating it.
func (s *Store) FindByStorageKey(ctx context.Context, storageKey string) (*Asset, error) {
	storageKey = strings.TrimSpace(storageKey)
	if storageKey == "" {
		return nil, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+assetColumns+` FROM assets WHERE storage_key = ?`, storageKey)
	asset, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find asset by storage key: %w", err)
	}
	return asset, nil
}

// ListAssets returns all assets ordered by creation time, newest first.
func (s *Store) ListAssets(ctx context.Context) ([]*Asset, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+assetColumns+` FROM assets ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var assets []*Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		assets = append(assets, asset)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assets: %w", err)
	}
	return assets, nil
}

// SetTranscription records the terminal transcription outcome for an asset.
// This is the only asset mutation performed outside the publish orchestrator's
// persist step.
func (s *Store) SetTranscription(ctx context.Context, id uuid.UUID, state TranscriptionState, transcript, captionURL string, speakers int) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`UPDATE assets SET transcription_state = ?, transcript_text = ?,
            caption_url = ?, speaker_count = ?, updated_at = ?
        WHERE id = ?`,
		string(state),
		nullableString(transcript),
		nullableString(captionURL),
		speakers,
		now,
		id.String(),
	)
	if err != nil {
		return fmt.Errorf("set transcription: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set transcription rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Health returns aggregated asset counts per lifecycle state.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM assets GROUP BY status`)
	if err != nil {
		return HealthSummary{}, fmt.Errorf("health query: %w", err)
	}
	defer rows.Close()

	var summary HealthSummary
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return HealthSummary{}, fmt.Errorf("scan health row: %w", err)
		}
		summary.Total += count
		switch AssetStatus(status) {
		case StatusDraft:
			summary.Draft = count
		case StatusProcessing:
			summary.Processing = count
		case StatusLive:
			summary.Live = count
		case StatusFailed:
			summary.Failed = count
		}
	}
	if err := rows.Err(); err != nil {
		return HealthSummary{}, fmt.Errorf("iterate health rows: %w", err)
	}
	return summary, nil
}
