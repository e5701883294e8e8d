package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation    = errors.New("validation error")
	ErrTransfer      = errors.New("transfer error")
	ErrPersistence   = errors.New("persistence error")
	ErrTranscode     = errors.New("transcode error")
	ErrThumbnail     = errors.New("thumbnail error")
	ErrTranscription = errors.New("transcription error")
	ErrPlayback      = errors.New("playback resolution error")
	ErrConfiguration = errors.New("configuration error")
	ErrTimeout       = errors.New("timeout")
	ErrCancelled     = errors.New("cancelled")
)

// Wrap builds an error message that includes step context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, step, operation, message string, err error) error {
	detail := buildDetail(step, operation, message)
	if marker == nil {
		marker = ErrTransfer
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Absorbed reports whether a step error is recovered locally instead of
// failing the publish job. Thumbnail and transcription failures only degrade
// the published asset.
func Absorbed(err error) bool {
	return errors.Is(err, ErrThumbnail) || errors.Is(err, ErrTranscription)
}

// Cancelled reports whether an error represents an operator-initiated abort.
func Cancelled(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}

func buildDetail(step, operation, message string) string {
	parts := make([]string, 0, 3)
	if step = strings.TrimSpace(step); step != "" {
		parts = append(parts, step)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
