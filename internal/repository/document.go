// Package repository stores fiscal documents in PostgreSQL. Each document is
// one row: the workflow fields live in their own columns and the full record
// is kept as JSONB.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/luizacavalcantee/gestao-fiscal/internal/model"
)

const table = "documentos_fiscais"

var columns = []string{
	"id::text",
	"tipo_documento",
	"status",
	"data_recebimento",
	"data_aprovacao",
	"aprovador",
	"corpo",
}

// itemCountExpr yields the NFe item count, 0 when the list is absent.
const itemCountExpr = "CASE WHEN jsonb_typeof(corpo->'itens') = 'array' THEN jsonb_array_length(corpo->'itens') ELSE 0 END"

// querier is satisfied by *pgxpool.Pool and by pgxmock pools.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// DocumentRepository wraps all SQL used by the services.
type DocumentRepository struct {
	q  querier
	sb sq.StatementBuilderType
}

// NewDocumentRepository constructs a repository.
func NewDocumentRepository(q querier) *DocumentRepository {
	return &DocumentRepository{
		q:  q,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Insert stores d and returns the generated id.
func (r *DocumentRepository) Insert(ctx context.Context, d *model.Document) (string, error) {
	body := d.Clone()
	body.ID = ""
	corpo, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}

	query, args, err := r.sb.Insert(table).
		Columns("tipo_documento", "status", "data_recebimento", "corpo").
		Values(string(d.Tipo), string(d.Status), d.DataRecebimento, corpo).
		Suffix("RETURNING id::text").
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build insert: %w", err)
	}

	var id string
	if err := r.q.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return "", mapError(err, "insert", "")
	}
	return id, nil
}

// FindMany returns the documents matching f ordered by reception time.
func (r *DocumentRepository) FindMany(ctx context.Context, f model.Filter) ([]*model.Document, error) {
	query, args, err := r.selectFor(f).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "find", "")
	}
	defer rows.Close()

	out := make([]*model.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, mapError(err, "find", "")
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "find", "")
	}
	return out, nil
}

func (r *DocumentRepository) selectFor(f model.Filter) sq.SelectBuilder {
	b := r.sb.Select(columns...).From(table)
	if f.Status != "" {
		b = b.Where(sq.Eq{"status": string(f.Status)})
	}
	if len(f.Types) > 0 {
		types := make([]string, 0, len(f.Types))
		for _, t := range f.Types {
			types = append(types, string(t))
		}
		b = b.Where(sq.Eq{"tipo_documento": types})
	}
	if f.NFeItemsBelow > 0 {
		b = b.Where(sq.Or{
			sq.NotEq{"tipo_documento": string(model.TypeNFe)},
			sq.Expr(itemCountExpr+" < ?", f.NFeItemsBelow),
		})
	}
	return b.OrderBy("data_recebimento", "id")
}

// UpdateStatusFields writes the approval fields. Malformed ids match nothing.
func (r *DocumentRepository) UpdateStatusFields(ctx context.Context, id string, u model.StatusUpdate) (int64, error) {
	if _, err := uuid.Parse(id); err != nil {
		return 0, nil
	}

	query, args, err := r.sb.Update(table).
		Set("status", string(u.Status)).
		Set("data_aprovacao", u.DataAprovacao).
		Set("aprovador", u.Aprovador).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build update: %w", err)
	}

	tag, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return 0, mapError(err, "update", id)
	}
	return tag.RowsAffected(), nil
}

// Get returns a single document.
func (r *DocumentRepository) Get(ctx context.Context, id string) (*model.Document, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("get %s: %w", id, model.ErrNotFound)
	}

	query, args, err := r.sb.Select(columns...).From(table).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	d, err := scanDocument(r.q.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, mapError(err, "get", id)
	}
	return d, nil
}

// Ping checks the connection.
func (r *DocumentRepository) Ping(ctx context.Context) error {
	if err := r.q.Ping(ctx); err != nil {
		return model.StorageError("ping", err)
	}
	return nil
}

func scanDocument(row pgx.Row) (*model.Document, error) {
	var (
		id, tipo, status string
		recebimento      time.Time
		aprovacao        *time.Time
		aprovador        *string
		corpo            []byte
	)
	if err := row.Scan(&id, &tipo, &status, &recebimento, &aprovacao, &aprovador, &corpo); err != nil {
		return nil, err
	}

	var d model.Document
	if err := json.Unmarshal(corpo, &d); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", id, err)
	}

	// Columns are authoritative over the copy kept in corpo.
	d.ID = id
	d.Tipo = model.DocumentType(tipo)
	d.Status = model.Status(status)
	d.DataRecebimento = recebimento.UTC()
	d.DataAprovacao = nil
	if aprovacao != nil {
		at := aprovacao.UTC()
		d.DataAprovacao = &at
	}
	d.Aprovador = ""
	if aprovador != nil {
		d.Aprovador = *aprovador
	}
	return &d, nil
}

// mapError converts pgx errors to model errors. Context errors pass through.
func mapError(err error, op, id string) error {
	if err == nil {
		return nil
	}
	if id != "" {
		op = op + " " + id
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, model.ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "22P02": // invalid_text_representation
			return fmt.Errorf("%s: %w", op, model.ErrNotFound)
		}
	}

	return model.StorageError(op, err)
}
