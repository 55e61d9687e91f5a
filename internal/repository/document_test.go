package repository

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luizacavalcantee/gestao-fiscal/internal/model"
	"github.com/luizacavalcantee/gestao-fiscal/internal/samples"
)

var rowColumns = []string{"id", "tipo_documento", "status", "data_recebimento", "data_aprovacao", "aprovador", "corpo"}

func newMock(t *testing.T) (*DocumentRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return NewDocumentRepository(mock), mock
}

func parsed(t *testing.T, raw []byte) *model.Document {
	t.Helper()
	d, err := model.ParseDocument(raw)
	require.NoError(t, err)
	d.Status = model.StatusCapturado
	d.DataRecebimento = time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
	return d
}

func corpoOf(t *testing.T, d *model.Document) []byte {
	t.Helper()
	b, err := json.Marshal(d)
	require.NoError(t, err)
	return b
}

// corpoArg matches a JSONB body without an _id and with the given variant.
type corpoArg struct{ tipo model.DocumentType }

func (a corpoArg) Match(v any) bool {
	b, ok := v.([]byte)
	if !ok {
		return false
	}
	var m map[string]any
	if json.Unmarshal(b, &m) != nil {
		return false
	}
	_, hasID := m["_id"]
	return !hasID && m["tipo_documento"] == string(a.tipo)
}

func TestInsert(t *testing.T) {
	t.Parallel()

	repo, mock := newMock(t)
	d := parsed(t, samples.NFe())
	d.ID = "ignored"
	id := uuid.NewString()

	mock.ExpectQuery(regexp.QuoteMeta(
		"INSERT INTO documentos_fiscais (tipo_documento,status,data_recebimento,corpo) VALUES ($1,$2,$3,$4) RETURNING id::text",
	)).
		WithArgs("NFe", "Capturado", d.DataRecebimento, corpoArg{tipo: model.TypeNFe}).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(id))

	got, err := repo.Insert(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, id, got)
	assert.Equal(t, "ignored", d.ID)
}

func TestInsert_StorageError(t *testing.T) {
	t.Parallel()

	repo, mock := newMock(t)
	mock.ExpectQuery(`INSERT INTO documentos_fiscais`).
		WithArgs("NFSe", "Capturado", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	_, err := repo.Insert(context.Background(), parsed(t, samples.NFSe()))
	require.ErrorIs(t, err, model.ErrStorage)
}

func TestFindMany_SQL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		filter model.Filter
		sql    string
		args   []any
	}{
		{
			name:   "all",
			filter: model.Filter{},
			sql:    "SELECT id::text, tipo_documento, status, data_recebimento, data_aprovacao, aprovador, corpo FROM documentos_fiscais ORDER BY data_recebimento, id",
		},
		{
			name:   "pending review",
			filter: model.PendingReviewFilter(),
			sql: "SELECT id::text, tipo_documento, status, data_recebimento, data_aprovacao, aprovador, corpo FROM documentos_fiscais " +
				"WHERE status = $1 AND (tipo_documento <> $2 OR " + itemCountExpr + " < $3) ORDER BY data_recebimento, id",
			args: []any{"Capturado", "NFe", 4},
		},
		{
			name:   "types",
			filter: model.Filter{Types: []model.DocumentType{model.TypeNFe, model.TypeNFSe}},
			sql:    "SELECT id::text, tipo_documento, status, data_recebimento, data_aprovacao, aprovador, corpo FROM documentos_fiscais WHERE tipo_documento IN ($1,$2) ORDER BY data_recebimento, id",
			args:   []any{"NFe", "NFSe"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repo, mock := newMock(t)
			exp := mock.ExpectQuery(regexp.QuoteMeta(tt.sql))
			if len(tt.args) > 0 {
				exp = exp.WithArgs(tt.args...)
			}
			exp.WillReturnRows(pgxmock.NewRows(rowColumns))

			docs, err := repo.FindMany(context.Background(), tt.filter)
			require.NoError(t, err)
			assert.NotNil(t, docs)
			assert.Empty(t, docs)
		})
	}
}

func TestFindMany_ColumnsOverrideBody(t *testing.T) {
	t.Parallel()

	repo, mock := newMock(t)

	nfe := parsed(t, samples.NFe())
	nfse := parsed(t, samples.NFSe())
	nfeID, nfseID := uuid.NewString(), uuid.NewString()
	approvedAt := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	approver := "Ana"

	mock.ExpectQuery(`SELECT .* FROM documentos_fiscais`).
		WillReturnRows(pgxmock.NewRows(rowColumns).
			AddRow(nfeID, "NFe", "Capturado", nfe.DataRecebimento, nil, nil, corpoOf(t, nfe)).
			AddRow(nfseID, "NFSe", "Pronto para Pagamento", nfse.DataRecebimento, &approvedAt, &approver, corpoOf(t, nfse)))

	docs, err := repo.FindMany(context.Background(), model.Filter{})
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, nfeID, docs[0].ID)
	assert.Equal(t, model.TypeNFe, docs[0].Tipo)
	require.NotNil(t, docs[0].NFeFields)
	assert.Len(t, docs[0].Itens, 2)
	assert.Nil(t, docs[0].DataAprovacao)

	assert.Equal(t, nfseID, docs[1].ID)
	assert.Equal(t, model.StatusProntoParaPagamento, docs[1].Status)
	assert.Equal(t, "Ana", docs[1].Aprovador)
	require.NotNil(t, docs[1].DataAprovacao)
	assert.True(t, approvedAt.Equal(*docs[1].DataAprovacao))
	require.NotNil(t, docs[1].NFSeFields)
	assert.Equal(t, "01.01", docs[1].CodigoServico)
}

func TestFindMany_QueryError(t *testing.T) {
	t.Parallel()

	repo, mock := newMock(t)
	mock.ExpectQuery(`SELECT`).
		WithArgs("Capturado", "NFe", 4).
		WillReturnError(errors.New("too many connections"))

	_, err := repo.FindMany(context.Background(), model.PendingReviewFilter())
	require.ErrorIs(t, err, model.ErrStorage)
}

func TestFindMany_KeepsExtraFields(t *testing.T) {
	t.Parallel()

	repo, mock := newMock(t)
	d := parsed(t, samples.NFSeWith(map[string]any{"observacao": "revisar"}))
	id := uuid.NewString()

	mock.ExpectQuery(`SELECT .* FROM documentos_fiscais`).
		WillReturnRows(pgxmock.NewRows(rowColumns).
			AddRow(id, "NFSe", "Capturado", d.DataRecebimento, nil, nil, corpoOf(t, d)))

	docs, err := repo.FindMany(context.Background(), model.Filter{})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.JSONEq(t, `"revisar"`, string(docs[0].Extras["observacao"]))
}

func TestUpdateStatusFields(t *testing.T) {
	t.Parallel()

	id := uuid.NewString()
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	update := model.StatusUpdate{Status: model.StatusProntoParaPagamento, DataAprovacao: at, Aprovador: "João Silva"}
	const sql = "UPDATE documentos_fiscais SET status = $1, data_aprovacao = $2, aprovador = $3 WHERE id = $4"

	tests := []struct {
		name     string
		affected int64
	}{
		{"matched", 1},
		{"unknown id", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repo, mock := newMock(t)
			mock.ExpectExec(regexp.QuoteMeta(sql)).
				WithArgs("Pronto para Pagamento", at, "João Silva", id).
				WillReturnResult(pgxmock.NewResult("UPDATE", tt.affected))

			n, err := repo.UpdateStatusFields(context.Background(), id, update)
			require.NoError(t, err)
			assert.Equal(t, tt.affected, n)
		})
	}
}

func TestUpdateStatusFields_MalformedIDSkipsQuery(t *testing.T) {
	t.Parallel()

	repo, _ := newMock(t)

	n, err := repo.UpdateStatusFields(context.Background(), "64b7f0c2e1", model.StatusUpdate{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUpdateStatusFields_Error(t *testing.T) {
	t.Parallel()

	repo, mock := newMock(t)
	id := uuid.NewString()
	mock.ExpectExec(`UPDATE documentos_fiscais`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), id).
		WillReturnError(errors.New("disk full"))

	_, err := repo.UpdateStatusFields(context.Background(), id, model.StatusUpdate{})
	require.ErrorIs(t, err, model.ErrStorage)
}

func TestGet(t *testing.T) {
	t.Parallel()

	t.Run("found", func(t *testing.T) {
		t.Parallel()
		repo, mock := newMock(t)
		id := uuid.NewString()
		d := parsed(t, samples.NFSe())

		mock.ExpectQuery(regexp.QuoteMeta("FROM documentos_fiscais WHERE id = $1")).
			WithArgs(id).
			WillReturnRows(pgxmock.NewRows(rowColumns).
				AddRow(id, "NFSe", "Capturado", d.DataRecebimento, nil, nil, corpoOf(t, d)))

		got, err := repo.Get(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, id, got.ID)
		assert.Equal(t, d.Prestador, got.Prestador)
	})

	t.Run("no rows", func(t *testing.T) {
		t.Parallel()
		repo, mock := newMock(t)
		id := uuid.NewString()
		mock.ExpectQuery(`SELECT`).
			WithArgs(id).
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.Get(context.Background(), id)
		require.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("malformed id", func(t *testing.T) {
		t.Parallel()
		repo, _ := newMock(t)

		_, err := repo.Get(context.Background(), "nope")
		require.ErrorIs(t, err, model.ErrNotFound)
	})
}

func TestPing(t *testing.T) {
	t.Parallel()

	repo, mock := newMock(t)
	mock.ExpectPing()
	require.NoError(t, repo.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("refused"))
	require.ErrorIs(t, repo.Ping(context.Background()), model.ErrStorage)
}

func TestMapError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", pgx.ErrNoRows, model.ErrNotFound},
		{"bad uuid text", &pgconn.PgError{Code: "22P02"}, model.ErrNotFound},
		{"other pg error", &pgconn.PgError{Code: "53300"}, model.ErrStorage},
		{"network", errors.New("eof"), model.ErrStorage},
		{"deadline", context.DeadlineExceeded, context.DeadlineExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.ErrorIs(t, mapError(tt.err, "op", "x"), tt.want)
		})
	}

	assert.NoError(t, mapError(nil, "op", ""))
}
