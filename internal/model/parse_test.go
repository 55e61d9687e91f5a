package model_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luizacavalcantee/gestao-fiscal/internal/model"
	"github.com/luizacavalcantee/gestao-fiscal/internal/samples"
)

func requireFieldError(t *testing.T, err error, field string) {
	t.Helper()
	require.ErrorIs(t, err, model.ErrValidation)
	var verr *model.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.True(t, verr.HasField(field), "expected error on %q, got %v", field, verr.Errors)
}

func TestParseDocument_NFe(t *testing.T) {
	t.Parallel()

	doc, err := model.ParseDocument(samples.NFe())
	require.NoError(t, err)

	assert.Equal(t, model.TypeNFe, doc.Tipo)
	assert.Equal(t, "000123", doc.Numero)
	assert.Equal(t, "Empresa XYZ Ltda", doc.Emitente.Nome)
	assert.Equal(t, "98.765.432/0001-10", doc.Destinatario.CNPJ)
	assert.True(t, doc.ValorTotal.Equal(decimal.RequireFromString("1500")))
	assert.True(t, time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC).Equal(doc.DataEmissao))

	require.NotNil(t, doc.NFeFields)
	assert.Nil(t, doc.NFSeFields)
	assert.Equal(t, "35210812345678901234550010001234561234567890", doc.ChaveAcesso)
	require.Len(t, doc.Itens, 2)
	assert.Equal(t, "PROD002", doc.Itens[1].Codigo)
	assert.Equal(t, "87654321", doc.Itens[1].NCM)
	assert.True(t, doc.ImpostosFederais.PIS.Equal(decimal.RequireFromString("24.75")))

	assert.Empty(t, doc.ID)
	assert.Empty(t, doc.Status)
	assert.True(t, doc.DataRecebimento.IsZero())
}

func TestParseDocument_NFSe(t *testing.T) {
	t.Parallel()

	doc, err := model.ParseDocument(samples.NFSe())
	require.NoError(t, err)

	assert.Equal(t, model.TypeNFSe, doc.Tipo)
	require.NotNil(t, doc.NFSeFields)
	assert.Nil(t, doc.NFeFields)
	assert.Equal(t, "01.01", doc.CodigoServico)
	assert.True(t, doc.AliquotaISS.Equal(decimal.RequireFromString("5")))
	assert.Equal(t, "123456789", doc.Prestador.InscricaoMunicipal)
	assert.Equal(t, -1, doc.ItemCount())
}

func TestParseDocument_DocumentType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  []byte
	}{
		{name: "missing", raw: samples.NFeWith(map[string]any{"tipo_documento": nil})},
		{name: "unsupported", raw: samples.NFeWith(map[string]any{"tipo_documento": "CTe"})},
		{name: "wrong case", raw: samples.NFeWith(map[string]any{"tipo_documento": "nfe"})},
		{name: "not a string", raw: samples.NFeWith(map[string]any{"tipo_documento": 55})},
		{name: "empty object", raw: []byte(`{}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := model.ParseDocument(tt.raw)
			requireFieldError(t, err, "tipo_documento")
		})
	}
}

func TestParseDocument_TypeCheckedBeforeVariantFields(t *testing.T) {
	t.Parallel()

	_, err := model.ParseDocument([]byte(`{"tipo_documento":"XML","numero":"1"}`))

	var verr *model.ValidationError
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Errors, 1)
	assert.Equal(t, "tipo_documento", verr.Errors[0].Field)
}

func TestParseDocument_NotAnObject(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{``, `[]`, `"NFe"`, `{"tipo_documento":`} {
		_, err := model.ParseDocument([]byte(raw))
		requireFieldError(t, err, "body")
	}
}

func TestParseDocument_RequiredFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		raw   []byte
		field string
	}{
		{"nfe numero", samples.NFeWith(map[string]any{"numero": nil}), "numero"},
		{"nfe chave", samples.NFeWith(map[string]any{"chave_acesso": nil}), "chave_acesso"},
		{"nfe itens", samples.NFeWith(map[string]any{"itens": nil}), "itens"},
		{"nfe impostos", samples.NFeWith(map[string]any{"impostos_federais": nil}), "impostos_federais"},
		{"nfe icms", samples.NFeWith(map[string]any{"impostos_federais": map[string]any{"ipi": 1, "pis": 1, "cofins": 1}}), "impostos_federais.icms"},
		{"nfe item codigo", samples.NFeWith(map[string]any{"itens": []map[string]any{{"descricao": "x", "quantidade": 1, "valor_unitario": 1, "valor_total": 1}}}), "itens[0].codigo"},
		{"emitente", samples.NFeWith(map[string]any{"emitente": nil}), "emitente"},
		{"emitente cnpj", samples.NFeWith(map[string]any{"emitente": map[string]any{"nome": "X"}}), "emitente.cnpj"},
		{"destinatario tax id", samples.NFeWith(map[string]any{"destinatario": map[string]any{"nome": "X"}}), "destinatario.cnpj"},
		{"destinatario nome", samples.NFeWith(map[string]any{"destinatario": map[string]any{"cpf": "123.456.789-00"}}), "destinatario.nome"},
		{"valor_total", samples.NFeWith(map[string]any{"valor_total": nil}), "valor_total"},
		{"data_emissao", samples.NFeWith(map[string]any{"data_emissao": nil}), "data_emissao"},
		{"nfse codigo_servico", samples.NFSeWith(map[string]any{"codigo_servico": nil}), "codigo_servico"},
		{"nfse aliquota", samples.NFSeWith(map[string]any{"aliquota_iss": nil}), "aliquota_iss"},
		{"nfse prestador", samples.NFSeWith(map[string]any{"prestador": nil}), "prestador"},
		{"nfse inscricao", samples.NFSeWith(map[string]any{"prestador": map[string]any{"cnpj": "1", "nome": "P"}}), "prestador.inscricao_municipal"},
		{"nfse descricao", samples.NFSeWith(map[string]any{"descricao_servico": ""}), "descricao_servico"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := model.ParseDocument(tt.raw)
			requireFieldError(t, err, tt.field)
		})
	}
}

func TestParseDocument_CollectsAllErrors(t *testing.T) {
	t.Parallel()

	raw := samples.NFeWith(map[string]any{"numero": nil, "chave_acesso": nil, "itens": nil})
	_, err := model.ParseDocument(raw)

	var verr *model.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Errors, 3)
}

func TestParseDocument_EmptyItemsIsValid(t *testing.T) {
	t.Parallel()

	doc, err := model.ParseDocument(samples.NFeWith(map[string]any{"itens": []any{}}))
	require.NoError(t, err)
	require.NotNil(t, doc.Itens)
	assert.Equal(t, 0, doc.ItemCount())

	out, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"itens":[]`)
}

func TestParseDocument_NegativeAmounts(t *testing.T) {
	t.Parallel()

	_, err := model.ParseDocument(samples.NFeWith(map[string]any{"valor_total": -1}))
	requireFieldError(t, err, "valor_total")

	_, err = model.ParseDocument(samples.NFeWith(map[string]any{
		"impostos_federais": map[string]any{"icms": 1, "ipi": -0.01, "pis": 0, "cofins": 0},
	}))
	requireFieldError(t, err, "impostos_federais.ipi")
}

func TestParseDocument_NoCrossFieldChecks(t *testing.T) {
	t.Parallel()

	// Item totals deliberately disagree with valor_total.
	doc, err := model.ParseDocument(samples.NFeWith(map[string]any{"valor_total": 1}))
	require.NoError(t, err)
	assert.True(t, doc.ValorTotal.Equal(decimal.NewFromInt(1)))
}

func TestParseDocument_IssuanceDate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2024-01-15T10:30:00.000Z", time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC), true},
		{"2024-01-15T10:30:00-03:00", time.Date(2024, 1, 15, 13, 30, 0, 0, time.UTC), true},
		{"2024-01-15T10:30:00", time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC), true},
		{"2024-01-15", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), true},
		{"15/01/2024", time.Time{}, false},
		{"ontem", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			doc, err := model.ParseDocument(samples.NFeWith(map[string]any{"data_emissao": tt.in}))
			if !tt.ok {
				requireFieldError(t, err, "data_emissao")
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(doc.DataEmissao), "got %v", doc.DataEmissao)
		})
	}
}

func TestParseDocument_IgnoresServerFields(t *testing.T) {
	t.Parallel()

	doc, err := model.ParseDocument(samples.NFeWith(map[string]any{
		"_id":              "abc",
		"status":           "Pago",
		"data_recebimento": "2020-01-01T00:00:00Z",
		"data_aprovacao":   "2020-01-01T00:00:00Z",
		"aprovador":        "intruso",
	}))
	require.NoError(t, err)

	assert.Empty(t, doc.ID)
	assert.Empty(t, doc.Status)
	assert.True(t, doc.DataRecebimento.IsZero())
	assert.Nil(t, doc.DataAprovacao)
	assert.Empty(t, doc.Aprovador)
	assert.Empty(t, doc.Extras)
}

func TestParseDocument_KeepsUnknownFields(t *testing.T) {
	t.Parallel()

	doc, err := model.ParseDocument(samples.NFeWith(map[string]any{
		"observacao":    "entrega parcial",
		"pedido_compra": map[string]any{"numero": 77},
		"status":        "Pago",
	}))
	require.NoError(t, err)

	require.Len(t, doc.Extras, 2)
	assert.JSONEq(t, `"entrega parcial"`, string(doc.Extras["observacao"]))
	assert.JSONEq(t, `{"numero":77}`, string(doc.Extras["pedido_compra"]))
}

func TestParseDocument_AcceptsQuotedDecimals(t *testing.T) {
	t.Parallel()

	doc, err := model.ParseDocument(samples.NFSeWith(map[string]any{"valor_total": "5000.10"}))
	require.NoError(t, err)
	assert.Equal(t, "5000.1", doc.ValorTotal.String())
}

func TestParseDocument_WrongFieldType(t *testing.T) {
	t.Parallel()

	_, err := model.ParseDocument(samples.NFeWith(map[string]any{"valor_total": true}))
	requireFieldError(t, err, "body")
}
