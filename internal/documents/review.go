package documents

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/luizacavalcantee/gestao-fiscal/internal/model"
)

// Listing is a set of documents plus how many of each variant it holds.
type Listing struct {
	Documents []*model.Document
	Counts    map[model.DocumentType]int
}

// ReviewService answers read-only queries over stored documents.
type ReviewService struct {
	store Store
	log   *slog.Logger
}

// NewReviewService creates a ReviewService.
func NewReviewService(log *slog.Logger, store Store) *ReviewService {
	return &ReviewService{
		store: store,
		log:   log.With("service", "review"),
	}
}

// ListPendingReview returns the captured documents that still need a manual
// check: every NFSe and every NFe with fewer than four line items.
func (s *ReviewService) ListPendingReview(ctx context.Context) ([]*model.Document, error) {
	docs, err := s.store.FindMany(ctx, model.PendingReviewFilter())
	if err != nil {
		return nil, fmt.Errorf("list pending review: %w", err)
	}
	return nonNil(docs), nil
}

// ListAll returns every stored document regardless of variant or status.
func (s *ReviewService) ListAll(ctx context.Context) (*Listing, error) {
	docs, err := s.store.FindMany(ctx, model.Filter{})
	if err != nil {
		return nil, fmt.Errorf("list all: %w", err)
	}
	docs = nonNil(docs)
	return &Listing{Documents: docs, Counts: model.CountByType(docs)}, nil
}

// Get returns a single document.
func (s *ReviewService) Get(ctx context.Context, id string) (*model.Document, error) {
	id, err := canonicalID(id)
	if err != nil {
		return nil, err
	}
	doc, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", id, err)
	}
	return doc, nil
}

func nonNil(docs []*model.Document) []*model.Document {
	if docs == nil {
		return []*model.Document{}
	}
	return docs
}
