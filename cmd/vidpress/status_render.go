package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"

	"vidpress/internal/publish"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

func writerSupportsColor(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func stepStatusColor(status publish.StepStatus) string {
	switch status {
	case publish.StepProcessing:
		return ansiBlue
	case publish.StepCompleted:
		return ansiGreen
	case publish.StepError:
		return ansiRed
	default:
		return ansiYellow
	}
}

// newStepPrinter renders step transitions as they happen. Mid-step progress
// updates are suppressed below whole-percent granularity to keep output
// readable on chunked uploads.
func newStepPrinter(w io.Writer, colorize bool) publish.Observer {
	lastPercent := make(map[publish.StepID]int)
	return func(s publish.StepSnapshot) {
		if s.Status == publish.StepProcessing && s.Percent > 0 {
			whole := int(s.Percent)
			if whole == lastPercent[s.ID] {
				return
			}
			lastPercent[s.ID] = whole
		}

		line := fmt.Sprintf("  %-10s %-10s %3.0f%%", s.ID.DisplayName(), s.Status, s.Percent)
		if s.Detail != "" {
			line += "  " + s.Detail
		}
		if s.Status == publish.StepCompleted && s.Duration > 0 {
			line += fmt.Sprintf(" (%s)", s.Duration.Round(time.Millisecond))
		}
		if colorize {
			line = stepStatusColor(s.Status) + line + ansiReset
		}
		fmt.Fprintln(w, line)
	}
}
