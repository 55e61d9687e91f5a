// Package model holds the fiscal document types shared by the services, the
// persistence gateways and the HTTP layer.
package model

import (
	"encoding/json"
	"maps"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Fiscal values travel as JSON numbers, matching the persisted record layout.
	decimal.MarshalJSONWithoutQuotes = true
}

// DocumentType discriminates the document variants stored in the same collection.
type DocumentType string

const (
	TypeNFe  DocumentType = "NFe"
	TypeNFSe DocumentType = "NFSe"
)

// DocumentTypes lists every supported variant.
var DocumentTypes = []DocumentType{TypeNFe, TypeNFSe}

func (t DocumentType) String() string { return string(t) }

func (t DocumentType) IsValid() bool {
	return slices.Contains(DocumentTypes, t)
}

// Status is the workflow position of a document. See workflow.go for the
// allowed transitions.
type Status string

const (
	StatusCapturado           Status = "Capturado"
	StatusProntoParaPagamento Status = "Pronto para Pagamento"
	StatusPago                Status = "Pago"
	StatusCancelado           Status = "Cancelado"
)

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	switch s {
	case StatusCapturado, StatusProntoParaPagamento, StatusPago, StatusCancelado:
		return true
	}
	return false
}

// Emitente is the issuer of a document.
type Emitente struct {
	CNPJ     string `json:"cnpj"`
	Nome     string `json:"nome"`
	Endereco string `json:"endereco,omitempty"`
}

// Destinatario is the recipient; it is identified either by CNPJ or CPF.
type Destinatario struct {
	CNPJ     string `json:"cnpj,omitempty"`
	CPF      string `json:"cpf,omitempty"`
	Nome     string `json:"nome"`
	Endereco string `json:"endereco,omitempty"`
}

// Prestador is the service provider of an NFSe.
type Prestador struct {
	CNPJ               string `json:"cnpj"`
	Nome               string `json:"nome"`
	InscricaoMunicipal string `json:"inscricao_municipal"`
	Endereco           string `json:"endereco,omitempty"`
}

// ItemNFe is one line of an NFe.
type ItemNFe struct {
	Codigo        string          `json:"codigo"`
	Descricao     string          `json:"descricao"`
	Quantidade    decimal.Decimal `json:"quantidade"`
	ValorUnitario decimal.Decimal `json:"valor_unitario"`
	ValorTotal    decimal.Decimal `json:"valor_total"`
	NCM           string          `json:"ncm,omitempty"`
}

// ImpostosFederais is the federal tax block of an NFe.
type ImpostosFederais struct {
	ICMS   decimal.Decimal `json:"icms"`
	IPI    decimal.Decimal `json:"ipi"`
	PIS    decimal.Decimal `json:"pis"`
	COFINS decimal.Decimal `json:"cofins"`
}

// NFeFields are the fields only an NFe carries.
type NFeFields struct {
	ChaveAcesso      string           `json:"chave_acesso"`
	Itens            []ItemNFe        `json:"itens"`
	ImpostosFederais ImpostosFederais `json:"impostos_federais"`
}

// NFSeFields are the fields only an NFSe carries.
type NFSeFields struct {
	CodigoServico    string          `json:"codigo_servico"`
	AliquotaISS      decimal.Decimal `json:"aliquota_iss"`
	Prestador        Prestador       `json:"prestador"`
	DescricaoServico string          `json:"descricao_servico"`
}

// Document is a captured fiscal document. Exactly one of NFe / NFSe is set,
// selected by Tipo; both embed flat so the JSON record keeps a single level of
// variant fields next to the shared ones.
type Document struct {
	ID              string          `json:"_id,omitempty"`
	Tipo            DocumentType    `json:"tipo_documento"`
	Numero          string          `json:"numero"`
	Emitente        Emitente        `json:"emitente"`
	Destinatario    Destinatario    `json:"destinatario"`
	ValorTotal      decimal.Decimal `json:"valor_total"`
	DataEmissao     time.Time       `json:"data_emissao"`
	Status          Status          `json:"status"`
	DataRecebimento time.Time       `json:"data_recebimento"`
	DataAprovacao   *time.Time      `json:"data_aprovacao,omitempty"`
	Aprovador       string          `json:"aprovador,omitempty"`

	*NFeFields
	*NFSeFields

	// Extras holds the top-level client fields no variant declares. They are
	// written flat next to the typed fields and never shadow them.
	Extras map[string]json.RawMessage `json:"-"`
}

// reservedKeys are the record keys owned by the typed fields.
var reservedKeys = map[string]struct{}{
	"_id": {}, "tipo_documento": {}, "numero": {}, "emitente": {}, "destinatario": {},
	"valor_total": {}, "data_emissao": {}, "status": {}, "data_recebimento": {},
	"data_aprovacao": {}, "aprovador": {},
	"chave_acesso": {}, "itens": {}, "impostos_federais": {},
	"codigo_servico": {}, "aliquota_iss": {}, "prestador": {}, "descricao_servico": {},
}

// extraFields returns the entries of fields that no typed field owns, or nil.
func extraFields(fields map[string]json.RawMessage) map[string]json.RawMessage {
	var out map[string]json.RawMessage
	for k, v := range fields {
		if _, ok := reservedKeys[k]; ok {
			continue
		}
		if out == nil {
			out = make(map[string]json.RawMessage)
		}
		out[k] = v
	}
	return out
}

type documentRecord Document

// MarshalJSON writes the typed fields and then any Extras.
func (d Document) MarshalJSON() ([]byte, error) {
	b, err := json.Marshal((*documentRecord)(&d))
	if err != nil || len(d.Extras) == 0 {
		return b, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, err
	}
	for k, v := range extraFields(d.Extras) {
		fields[k] = v
	}
	return json.Marshal(fields)
}

// UnmarshalJSON reads the typed fields and keeps the rest in Extras.
func (d *Document) UnmarshalJSON(b []byte) error {
	var rec documentRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	rec.Extras = extraFields(fields)
	*d = Document(rec)
	return nil
}

// ItemCount returns the number of NFe line items, or -1 when the document has
// no item list at all.
func (d *Document) ItemCount() int {
	if d.NFeFields == nil || d.Itens == nil {
		return -1
	}
	return len(d.Itens)
}

// Clone returns a deep copy so callers cannot alias stored state.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := *d
	if d.DataAprovacao != nil {
		t := *d.DataAprovacao
		c.DataAprovacao = &t
	}
	if d.NFeFields != nil {
		nfe := *d.NFeFields
		if d.Itens != nil {
			nfe.Itens = slices.Clone(d.Itens)
		}
		c.NFeFields = &nfe
	}
	if d.NFSeFields != nil {
		nfse := *d.NFSeFields
		c.NFSeFields = &nfse
	}
	c.Extras = maps.Clone(d.Extras)
	return &c
}

// StatusUpdate is the partial update written by a workflow transition.
type StatusUpdate struct {
	Status        Status
	DataAprovacao time.Time
	Aprovador     string
}

// Apply writes the update onto d.
func (u StatusUpdate) Apply(d *Document) {
	at := u.DataAprovacao
	d.Status = u.Status
	d.DataAprovacao = &at
	d.Aprovador = u.Aprovador
}
