// Package journal records the outcome of every command run, one entry per
// command, so sessions can be audited or replayed later.
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagewright/api/schemas"
	"github.com/xkilldash9x/pagewright/internal/config"
)

// Entry is one journaled command.
type Entry struct {
	ID                 string             `json:"id"`
	Time               time.Time          `json:"time"`
	PageID             string             `json:"page_id"`
	Command            string             `json:"command"`
	PlanID             string             `json:"plan_id,omitempty"`
	Action             string             `json:"action,omitempty"`
	Status             schemas.PlanStatus `json:"status,omitempty"`
	Success            bool               `json:"success"`
	Error              schemas.ErrorCode  `json:"error,omitempty"`
	Message            string             `json:"message,omitempty"`
	DurationMs         int64              `json:"duration_ms"`
	Steps              int                `json:"steps"`
	AttemptedSelectors []string           `json:"attempted_selectors,omitempty"`
}

// NewEntry summarises a finished command.
func NewEntry(text, action string, out *schemas.Outcome, d time.Duration, at time.Time) Entry {
	e := Entry{
		ID:         uuid.NewString(),
		Time:       at.UTC(),
		Command:    text,
		Action:     action,
		DurationMs: d.Milliseconds(),
	}
	if out != nil {
		e.PageID = out.PageID
		e.PlanID = out.PlanID
		e.Status = out.Status
		e.Success = out.Success
		e.Error = out.Error
		e.Message = out.Message
		e.Steps = len(out.Steps)
		e.AttemptedSelectors = out.AttemptedSelectors
	}
	return e
}

// Recorder persists journal entries. Implementations are safe for
// concurrent use.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
	Close() error
}

// Nop discards entries.
type Nop struct{}

func (Nop) Record(context.Context, Entry) error { return nil }
func (Nop) Close() error                        { return nil }

// Open builds the recorder the configuration selects.
func Open(ctx context.Context, cfg config.JournalConfig, logger *zap.Logger) (Recorder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Type {
	case "", config.JournalNone:
		return Nop{}, nil
	case config.JournalFile:
		return NewFile(cfg, logger), nil
	case config.JournalPostgres:
		return NewPostgres(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown journal type %q", cfg.Type)
	}
}
