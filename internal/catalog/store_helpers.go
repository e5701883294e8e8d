package catalog

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const assetColumns = "id, title, description, file_name, content_type, size_bytes, storage_key, public_url, stream_asset_id, thumbnail_url, status, progress_step, progress_percent, progress_message, error_message, transcription_state, speaker_count, transcript_text, caption_url, created_at, updated_at"

func scanAsset(scanner interface{ Scan(dest ...any) error }) (*Asset, error) {
	var (
		idStr           string
		title           string
		description     sql.NullString
		fileName        sql.NullString
		contentType     sql.NullString
		sizeBytes       sql.NullInt64
		storageKey      sql.NullString
		publicURL       sql.NullString
		streamAssetID   sql.NullString
		thumbnailURL    sql.NullString
		statusStr       string
		progressStep    sql.NullString
		progressPercent sql.NullFloat64
		progressMessage sql.NullString
		errorMessage    sql.NullString
		transcription   sql.NullString
		speakerCount    sql.NullInt64
		transcriptText  sql.NullString
		captionURL      sql.NullString
		createdRaw      sql.NullString
		updatedRaw      sql.NullString
	)

	if err := scanner.Scan(
		&idStr,
		&title,
		&description,
		&fileName,
		&contentType,
		&sizeBytes,
		&storageKey,
		&publicURL,
		&streamAssetID,
		&thumbnailURL,
		&statusStr,
		&progressStep,
		&progressPercent,
		&progressMessage,
		&errorMessage,
		&transcription,
		&speakerCount,
		&transcriptText,
		&captionURL,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}

	asset := &Asset{
		ID:                 id,
		Title:              title,
		Description:        description.String,
		FileName:           fileName.String,
		ContentType:        contentType.String,
		SizeBytes:          sizeBytes.Int64,
		StorageKey:         storageKey.String,
		PublicURL:          publicURL.String,
		StreamAssetID:      streamAssetID.String,
		ThumbnailURL:       thumbnailURL.String,
		Status:             AssetStatus(statusStr),
		ProgressStep:       progressStep.String,
		ProgressPercent:    progressPercent.Float64,
		ProgressMessage:    progressMessage.String,
		ErrorMessage:       errorMessage.String,
		TranscriptionState: TranscriptionState(transcription.String),
		SpeakerCount:       int(speakerCount.Int64),
		TranscriptText:     transcriptText.String,
		CaptionURL:         captionURL.String,
	}
	asset.CreatedAt = parseTimestamp(createdRaw)
	asset.UpdatedAt = parseTimestamp(updatedRaw)
	return asset, nil
}

func parseTimestamp(value sql.NullString) time.Time {
	if !value.Valid {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339Nano, value.String)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
