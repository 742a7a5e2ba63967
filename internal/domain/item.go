package domain

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a queue item.
type Status string

const (
	StatusIdle       Status = "idle"       // Awaiting selection into a batch run
	StatusProcessing Status = "processing" // Selected and being converted
	StatusComplete   Status = "complete"   // Converted successfully, result present
	StatusError      Status = "error"      // Conversion failed, error message present
)

// Valid checks if the status is a known lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusIdle, StatusProcessing, StatusComplete, StatusError:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status ends a processing pass.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusError
}

// CanTransitionTo reports whether the state machine permits moving to next.
//
//	Idle       -> Processing
//	Error      -> Processing   (retry on a future run)
//	Processing -> Complete | Error
//	Processing -> Idle         (batch canceled before the item started)
//	Complete   -> Idle         (explicit reset only)
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusIdle:
		return next == StatusProcessing
	case StatusError:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusComplete || next == StatusError || next == StatusIdle
	case StatusComplete:
		return next == StatusIdle
	default:
		return false
	}
}

// Pending reports whether the item is selectable for a batch run.
// Complete items are excluded; they need an explicit reset first.
func (s Status) Pending() bool {
	return s == StatusIdle || s == StatusError
}

// ProcessedResult is the output of a successful conversion.
type ProcessedResult struct {
	OutputBytes   []byte   // Encoded output blob
	OutputKey     string   // Store key for the download-ready artifact; "" once released
	OutputSize    int64    // Size of OutputBytes
	AIDescription string   // Empty if AI analysis was disabled or failed
	AITags        []string // Ordered; empty if unavailable
}

// QueueItem is one unit of work. The item exclusively owns its source bytes
// and its preview/output store keys; the queue releases the keys exactly once
// on removal or reset.
type QueueItem struct {
	ID           uuid.UUID
	SourceBytes  []byte
	OriginalName string
	OriginalSize int64
	MIMEType     string

	// PreviewKey is the store key of the display-only rendering, or "" if
	// preview generation failed or the key was released.
	PreviewKey string

	Status       Status
	Result       *ProcessedResult // non-nil iff Status == StatusComplete
	ErrorMessage string           // non-empty iff Status == StatusError

	CreatedAt time.Time
}

// BaseName returns the original filename without its extension.
func (i QueueItem) BaseName() string {
	return strings.TrimSuffix(i.OriginalName, filepath.Ext(i.OriginalName))
}

// OutputName returns the suggested download filename for the item's result:
// {originalBaseName}_converted.{extension}.
func (i QueueItem) OutputName(format Format) string {
	return fmt.Sprintf("%s_converted.%s", i.BaseName(), format.Extension())
}

// Clone returns a deep copy safe to hand to callers while the queue keeps
// mutating the original.
func (i QueueItem) Clone() QueueItem {
	out := i
	if i.Result != nil {
		r := *i.Result
		if i.Result.AITags != nil {
			r.AITags = append([]string(nil), i.Result.AITags...)
		}
		out.Result = &r
	}
	return out
}
