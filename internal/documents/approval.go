package documents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/luizacavalcantee/gestao-fiscal/internal/model"
)

// DefaultApprover is recorded when an approval names nobody.
const DefaultApprover = "Sistema"

// ApprovalConfig tunes the approval workflow.
type ApprovalConfig struct {
	DefaultApprover string
	// StrictTransitions rejects approvals of documents the state machine
	// cannot move, instead of re-applying the update.
	StrictTransitions bool
}

// ApprovalResult is the outcome of a successful approval.
type ApprovalResult struct {
	ID            string
	Modified      int64
	Status        model.Status
	Aprovador     string
	DataAprovacao time.Time
}

// ApprovalService drives the approval transition.
type ApprovalService struct {
	store  Store
	events EventPublisher
	log    *slog.Logger
	now    func() time.Time
	cfg    ApprovalConfig
}

// NewApprovalService creates an ApprovalService. events may be nil.
func NewApprovalService(log *slog.Logger, store Store, events EventPublisher, cfg ApprovalConfig) *ApprovalService {
	if strings.TrimSpace(cfg.DefaultApprover) == "" {
		cfg.DefaultApprover = DefaultApprover
	}
	return &ApprovalService{
		store:  store,
		events: publisherOrNop(events),
		log:    log.With("service", "approval"),
		now:    utcNow,
		cfg:    cfg,
	}
}

// Approve moves the document to Pronto para Pagamento, recording who approved
// it and when. A blank aprovador falls back to the configured default.
func (s *ApprovalService) Approve(ctx context.Context, id, aprovador string) (*ApprovalResult, error) {
	id, err := canonicalID(id)
	if err != nil {
		return nil, err
	}

	target, err := s.target(ctx, id)
	if err != nil {
		return nil, err
	}

	aprovador = strings.TrimSpace(aprovador)
	if aprovador == "" {
		aprovador = s.cfg.DefaultApprover
	}

	update := model.StatusUpdate{
		Status:        target,
		DataAprovacao: s.now(),
		Aprovador:     aprovador,
	}

	matched, err := s.store.UpdateStatusFields(ctx, id, update)
	if err != nil {
		return nil, fmt.Errorf("approve %s: %w", id, err)
	}
	if matched == 0 {
		return nil, fmt.Errorf("approve %s: %w", id, model.ErrNotFound)
	}

	s.log.InfoContext(ctx, "document approved",
		slog.String("id", id),
		slog.String("aprovador", aprovador),
	)

	if err := s.events.DocumentApproved(ctx, id, update); err != nil {
		s.log.WarnContext(ctx, "publish approved event", slog.String("id", id), slog.Any("error", err))
	}

	return &ApprovalResult{
		ID:            id,
		Modified:      matched,
		Status:        update.Status,
		Aprovador:     update.Aprovador,
		DataAprovacao: update.DataAprovacao,
	}, nil
}

// target resolves the status the approval writes. The permissive policy does
// not look at the stored status.
func (s *ApprovalService) target(ctx context.Context, id string) (model.Status, error) {
	if !s.cfg.StrictTransitions {
		return model.Target(model.EventAprovar)
	}

	current, err := s.store.Get(ctx, id)
	if err != nil {
		return "", fmt.Errorf("approve %s: %w", id, err)
	}
	next, err := current.Status.Next(model.EventAprovar)
	if err != nil {
		return "", fmt.Errorf("approve %s: %w", id, err)
	}
	return next, nil
}

// canonicalID checks that id is a UUID and returns its canonical form.
func canonicalID(id string) (string, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("%w: %q", model.ErrInvalidID, id)
	}
	return u.String(), nil
}
