// Package firestoredb stores fiscal documents in a Cloud Firestore collection,
// one Firestore document per fiscal document.
package firestoredb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/luizacavalcantee/gestao-fiscal/internal/model"
)

// NewClient creates a Firestore client for the given project. It honours
// FIRESTORE_EMULATOR_HOST.
func NewClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}
	return client, nil
}

// Store implements the document gateway over a Firestore collection.
type Store struct {
	coll *firestore.CollectionRef
}

// NewStore returns a Store writing to the named collection.
func NewStore(client *firestore.Client, collection string) *Store {
	return &Store{coll: client.Collection(collection)}
}

// Insert creates the document under a fresh UUID.
func (s *Store) Insert(ctx context.Context, d *model.Document) (string, error) {
	fields, err := toFields(d)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	if _, err := s.coll.Doc(id).Create(ctx, fields); err != nil {
		return "", model.StorageError("firestore insert", err)
	}
	return id, nil
}

// FindMany runs the status/type part of f as a Firestore query and applies
// the item-count rule on the results.
func (s *Store) FindMany(ctx context.Context, f model.Filter) ([]*model.Document, error) {
	q := s.coll.Query
	if f.Status != "" {
		q = q.Where("status", "==", string(f.Status))
	}
	if len(f.Types) > 0 {
		types := make([]string, 0, len(f.Types))
		for _, t := range f.Types {
			types = append(types, string(t))
		}
		q = q.Where("tipo_documento", "in", types)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	out := make([]*model.Document, 0)
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, model.StorageError("firestore find", err)
		}
		d, err := fromFields(snap.Ref.ID, snap.Data())
		if err != nil {
			return nil, err
		}
		if f.Match(d) {
			out = append(out, d)
		}
	}

	slices.SortStableFunc(out, func(a, b *model.Document) int {
		return a.DataRecebimento.Compare(b.DataRecebimento)
	})
	return out, nil
}

// UpdateStatusFields writes the approval fields. Unknown ids match 0.
func (s *Store) UpdateStatusFields(ctx context.Context, id string, u model.StatusUpdate) (int64, error) {
	if _, err := uuid.Parse(id); err != nil {
		return 0, nil
	}
	_, err := s.coll.Doc(id).Update(ctx, []firestore.Update{
		{Path: "status", Value: string(u.Status)},
		{Path: "data_aprovacao", Value: u.DataAprovacao},
		{Path: "aprovador", Value: u.Aprovador},
	})
	if status.Code(err) == codes.NotFound {
		return 0, nil
	}
	if err != nil {
		return 0, model.StorageError("firestore update "+id, err)
	}
	return 1, nil
}

// Get reads a single document.
func (s *Store) Get(ctx context.Context, id string) (*model.Document, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("firestore get %s: %w", id, model.ErrNotFound)
	}
	snap, err := s.coll.Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, fmt.Errorf("firestore get %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, model.StorageError("firestore get "+id, err)
	}
	return fromFields(id, snap.Data())
}

// Ping reads at most one document.
func (s *Store) Ping(ctx context.Context) error {
	iter := s.coll.Limit(1).Documents(ctx)
	defer iter.Stop()
	if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return model.StorageError("firestore ping", err)
	}
	return nil
}

// toFields flattens d into Firestore fields. Decimals are kept as their
// exact string form and the workflow timestamps as native timestamps.
func toFields(d *model.Document) (map[string]any, error) {
	body := d.Clone()
	body.ID = ""
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	stringifyNumbers(fields)

	// Client extras keep their JSON types.
	for k, raw := range d.Extras {
		if _, ok := fields[k]; !ok {
			continue
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("encode field %s: %w", k, err)
		}
		fields[k] = v
	}

	fields["data_recebimento"] = d.DataRecebimento
	fields["data_emissao"] = d.DataEmissao
	if d.DataAprovacao != nil {
		fields["data_aprovacao"] = *d.DataAprovacao
	}
	return fields, nil
}

func stringifyNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		return t.String()
	case map[string]any:
		for k, e := range t {
			t[k] = stringifyNumbers(e)
		}
	case []any:
		for i, e := range t {
			t[i] = stringifyNumbers(e)
		}
	}
	return v
}

func fromFields(id string, fields map[string]any) (*model.Document, error) {
	for k, v := range fields {
		if ts, ok := v.(time.Time); ok {
			fields[k] = ts.UTC()
		}
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("decode document %s: %w", id, err)
	}
	var d model.Document
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", id, err)
	}
	d.ID = id
	return &d, nil
}
