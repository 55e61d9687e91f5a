package documents

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/luizacavalcantee/gestao-fiscal/internal/model"
)

// CaptureResult is the outcome of a successful capture.
type CaptureResult struct {
	ID       string
	Document *model.Document
}

// IntakeService validates and stores incoming documents.
type IntakeService struct {
	store  Store
	events EventPublisher
	log    *slog.Logger
	now    func() time.Time
}

// NewIntakeService creates an IntakeService. events may be nil.
func NewIntakeService(log *slog.Logger, store Store, events EventPublisher) *IntakeService {
	return &IntakeService{
		store:  store,
		events: publisherOrNop(events),
		log:    log.With("service", "intake"),
		now:    utcNow,
	}
}

// Capture parses raw, stamps the initial workflow fields and inserts the
// document exactly once. Nothing is written when validation fails.
func (s *IntakeService) Capture(ctx context.Context, raw []byte) (*CaptureResult, error) {
	doc, err := model.ParseDocument(raw)
	if err != nil {
		return nil, err
	}

	doc.Status = model.InitialStatus
	doc.DataRecebimento = s.now()

	id, err := s.store.Insert(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	doc.ID = id

	s.log.InfoContext(ctx, "document captured",
		slog.String("id", id),
		slog.String("tipo_documento", doc.Tipo.String()),
		slog.String("numero", doc.Numero),
	)

	if err := s.events.DocumentCaptured(ctx, doc, raw); err != nil {
		s.log.WarnContext(ctx, "publish captured event", slog.String("id", id), slog.Any("error", err))
	}

	return &CaptureResult{ID: id, Document: doc}, nil
}
