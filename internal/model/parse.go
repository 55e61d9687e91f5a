package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Wire shapes use pointers so an absent (or null) field can be told apart
// from a zero value.
type partyPayload struct {
	CNPJ               *string `json:"cnpj"`
	CPF                *string `json:"cpf"`
	Nome               *string `json:"nome"`
	InscricaoMunicipal *string `json:"inscricao_municipal"`
	Endereco           *string `json:"endereco"`
}

type itemPayload struct {
	Codigo        *string          `json:"codigo"`
	Descricao     *string          `json:"descricao"`
	Quantidade    *decimal.Decimal `json:"quantidade"`
	ValorUnitario *decimal.Decimal `json:"valor_unitario"`
	ValorTotal    *decimal.Decimal `json:"valor_total"`
	NCM           *string          `json:"ncm"`
}

type taxesPayload struct {
	ICMS   *decimal.Decimal `json:"icms"`
	IPI    *decimal.Decimal `json:"ipi"`
	PIS    *decimal.Decimal `json:"pis"`
	COFINS *decimal.Decimal `json:"cofins"`
}

type documentPayload struct {
	Numero       *string          `json:"numero"`
	Emitente     *partyPayload    `json:"emitente"`
	Destinatario *partyPayload    `json:"destinatario"`
	ValorTotal   *decimal.Decimal `json:"valor_total"`
	DataEmissao  *string          `json:"data_emissao"`

	ChaveAcesso      *string        `json:"chave_acesso"`
	Itens            *[]itemPayload `json:"itens"`
	ImpostosFederais *taxesPayload  `json:"impostos_federais"`

	CodigoServico    *string          `json:"codigo_servico"`
	AliquotaISS      *decimal.Decimal `json:"aliquota_iss"`
	Prestador        *partyPayload    `json:"prestador"`
	DescricaoServico *string          `json:"descricao_servico"`
}

var issuanceLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	time.DateOnly,
}

// ParseDocument validates a raw JSON payload against the variant selected by
// its tipo_documento field. The returned document carries no identifier and
// no workflow fields; stamping them is the intake's job. Top-level keys no
// variant declares are kept in Extras; client values for server-owned keys
// are dropped.
func ParseDocument(raw []byte) (*Document, error) {
	var head map[string]json.RawMessage
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, NewValidationError("body", "must be a JSON object")
	}

	tipo, err := parseType(head["tipo_documento"])
	if err != nil {
		return nil, err
	}

	var p documentPayload
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&p); err != nil {
		return nil, NewValidationError("body", fmt.Sprintf("malformed field: %v", err))
	}

	v := &validator{}
	doc := &Document{
		Tipo:         tipo,
		Numero:       v.str("numero", p.Numero),
		Emitente:     v.emitente(p.Emitente),
		Destinatario: v.destinatario(p.Destinatario),
		ValorTotal:   v.amount("valor_total", p.ValorTotal),
		DataEmissao:  v.issuance(p.DataEmissao),
	}

	switch tipo {
	case TypeNFe:
		doc.NFeFields = &NFeFields{
			ChaveAcesso:      v.str("chave_acesso", p.ChaveAcesso),
			Itens:            v.items(p.Itens),
			ImpostosFederais: v.taxes(p.ImpostosFederais),
		}
	case TypeNFSe:
		doc.NFSeFields = &NFSeFields{
			CodigoServico:    v.str("codigo_servico", p.CodigoServico),
			AliquotaISS:      v.number("aliquota_iss", p.AliquotaISS),
			Prestador:        v.prestador(p.Prestador),
			DescricaoServico: v.str("descricao_servico", p.DescricaoServico),
		}
	}

	if len(v.errs) > 0 {
		return nil, &ValidationError{Errors: v.errs}
	}
	doc.Extras = extraFields(head)
	return doc, nil
}

func parseType(raw json.RawMessage) (DocumentType, error) {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil || !DocumentType(s).IsValid() {
		return "", NewValidationError("tipo_documento", "required; must be NFe or NFSe")
	}
	return DocumentType(s), nil
}

type validator struct {
	errs []FieldError
}

func (v *validator) fail(field, msg string) {
	v.errs = append(v.errs, FieldError{Field: field, Message: msg})
}

func (v *validator) str(field string, s *string) string {
	if s == nil || strings.TrimSpace(*s) == "" {
		v.fail(field, "required")
		return ""
	}
	return *s
}

func optional(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (v *validator) number(field string, d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		v.fail(field, "required")
		return decimal.Zero
	}
	return *d
}

func (v *validator) amount(field string, d *decimal.Decimal) decimal.Decimal {
	n := v.number(field, d)
	if d != nil && n.IsNegative() {
		v.fail(field, "must be non-negative")
	}
	return n
}

func (v *validator) issuance(s *string) time.Time {
	if s == nil || *s == "" {
		v.fail("data_emissao", "required")
		return time.Time{}
	}
	for _, layout := range issuanceLayouts {
		if t, err := time.Parse(layout, *s); err == nil {
			return t.UTC()
		}
	}
	v.fail("data_emissao", "malformed issuance date")
	return time.Time{}
}

func (v *validator) emitente(p *partyPayload) Emitente {
	if p == nil {
		v.fail("emitente", "required")
		return Emitente{}
	}
	return Emitente{
		CNPJ:     v.str("emitente.cnpj", p.CNPJ),
		Nome:     v.str("emitente.nome", p.Nome),
		Endereco: optional(p.Endereco),
	}
}

func (v *validator) destinatario(p *partyPayload) Destinatario {
	if p == nil {
		v.fail("destinatario", "required")
		return Destinatario{}
	}
	d := Destinatario{
		CNPJ:     optional(p.CNPJ),
		CPF:      optional(p.CPF),
		Nome:     v.str("destinatario.nome", p.Nome),
		Endereco: optional(p.Endereco),
	}
	if strings.TrimSpace(d.CNPJ) == "" && strings.TrimSpace(d.CPF) == "" {
		v.fail("destinatario.cnpj", "cnpj or cpf required")
	}
	return d
}

func (v *validator) prestador(p *partyPayload) Prestador {
	if p == nil {
		v.fail("prestador", "required")
		return Prestador{}
	}
	return Prestador{
		CNPJ:               v.str("prestador.cnpj", p.CNPJ),
		Nome:               v.str("prestador.nome", p.Nome),
		InscricaoMunicipal: v.str("prestador.inscricao_municipal", p.InscricaoMunicipal),
		Endereco:           optional(p.Endereco),
	}
}

// items requires the list itself; an empty list is a valid NFe.
func (v *validator) items(p *[]itemPayload) []ItemNFe {
	if p == nil {
		v.fail("itens", "required")
		return nil
	}
	out := make([]ItemNFe, 0, len(*p))
	for i, it := range *p {
		prefix := fmt.Sprintf("itens[%d].", i)
		out = append(out, ItemNFe{
			Codigo:        v.str(prefix+"codigo", it.Codigo),
			Descricao:     v.str(prefix+"descricao", it.Descricao),
			Quantidade:    v.number(prefix+"quantidade", it.Quantidade),
			ValorUnitario: v.number(prefix+"valor_unitario", it.ValorUnitario),
			ValorTotal:    v.number(prefix+"valor_total", it.ValorTotal),
			NCM:           optional(it.NCM),
		})
	}
	return out
}

func (v *validator) taxes(p *taxesPayload) ImpostosFederais {
	if p == nil {
		v.fail("impostos_federais", "required")
		return ImpostosFederais{}
	}
	return ImpostosFederais{
		ICMS:   v.amount("impostos_federais.icms", p.ICMS),
		IPI:    v.amount("impostos_federais.ipi", p.IPI),
		PIS:    v.amount("impostos_federais.pis", p.PIS),
		COFINS: v.amount("impostos_federais.cofins", p.COFINS),
	}
}
