package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/luizacavalcantee/gestao-fiscal/internal/model"
)

const (
	msgCaptured      = "Documento Capturado com sucesso!"
	msgPending       = "Documentos pendentes de validação manual"
	msgFlexible      = "Demonstração de flexibilidade de esquema"
	msgTipoRequired  = "Campo 'tipo_documento' é obrigatório e deve ser 'NFe' ou 'NFSe'"
	msgInvalidDoc    = "Documento fiscal inválido."
	msgBodyTooLarge  = "Corpo da requisição excede o limite permitido."
	msgInvalidBody   = "Corpo da requisição inválido."
	msgIDRequired    = "ID do documento é obrigatório."
	msgInvalidID     = "ID do documento inválido."
	msgNotFound      = "Documento não encontrado."
	msgConflict      = "Documento não pode ser aprovado no status atual."
	msgNoOriginal    = "Arquivo original não disponível."
	msgCaptureFailed = "Erro interno ao capturar documento fiscal."
	msgPendingFailed = "Erro interno ao consultar documentos para validação."
	msgListFailed    = "Erro interno ao consultar documentos."
	msgApproveFailed = "Erro interno ao processar aprovação."
	msgGetFailed     = "Erro interno ao consultar documento."
	msgLinkFailed    = "Erro interno ao gerar link do arquivo original."
)

type captureResponse struct {
	Mensagem  string          `json:"mensagem"`
	ID        string          `json:"_id"`
	Documento *model.Document `json:"documento"`
}

type listResponse struct {
	Mensagem   string            `json:"mensagem"`
	Total      int               `json:"total"`
	Documentos []*model.Document `json:"documentos"`
}

type flexibleResponse struct {
	Mensagem         string                     `json:"mensagem"`
	Total            int                        `json:"total"`
	TiposEncontrados map[model.DocumentType]int `json:"tipos_encontrados"`
	Documentos       []*model.Document          `json:"documentos"`
}

type approveRequest struct {
	Aprovador string `json:"aprovador"`
}

type approveResponse struct {
	Mensagem    string `json:"mensagem"`
	Modificados int64  `json:"modificados"`
}

type documentResponse struct {
	Documento *model.Document `json:"documento"`
}

type originalURLResponse struct {
	URL      string `json:"url"`
	ExpiraEm int64  `json:"expira_em_segundos"`
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"mensagem": "API Gestão Fiscal - Sistema de Automação Fiscal",
		"versao":   s.deps.Version,
		"endpoints": map[string]string{
			"captura":      "POST /captura",
			"pendentes":    "GET /documentos/pendentes",
			"flexiveis":    "GET /documentos/flexiveis",
			"documento":    "GET /documentos/{id}",
			"original_url": "GET /documentos/{id}/original-url",
			"aprovar":      "PATCH /documentos/{id}/aprovar",
		},
	})
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: msgBodyTooLarge})
			return
		}
		respondJSON(w, http.StatusBadRequest, errorBody{Error: msgInvalidBody})
		return
	}

	res, err := s.deps.Intake.Capture(r.Context(), raw)
	if err != nil {
		var verr *model.ValidationError
		switch {
		case errors.As(err, &verr) && verr.HasField("tipo_documento"):
			respondJSON(w, http.StatusBadRequest, errorBody{Error: msgTipoRequired})
		case errors.As(err, &verr):
			respondJSON(w, http.StatusBadRequest, errorBody{Error: msgInvalidDoc, Detalhes: verr.Errors})
		default:
			s.internalError(w, r, err, msgCaptureFailed)
		}
		return
	}

	respondJSON(w, http.StatusCreated, captureResponse{
		Mensagem:  msgCaptured,
		ID:        res.ID,
		Documento: res.Document,
	})
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	docs, err := s.deps.Review.ListPendingReview(r.Context())
	if err != nil {
		s.internalError(w, r, err, msgPendingFailed)
		return
	}
	respondJSON(w, http.StatusOK, listResponse{
		Mensagem:   msgPending,
		Total:      len(docs),
		Documentos: docs,
	})
}

func (s *Server) handleFlexible(w http.ResponseWriter, r *http.Request) {
	listing, err := s.deps.Review.ListAll(r.Context())
	if err != nil {
		s.internalError(w, r, err, msgListFailed)
		return
	}
	respondJSON(w, http.StatusOK, flexibleResponse{
		Mensagem:         msgFlexible,
		Total:            len(listing.Documents),
		TiposEncontrados: listing.Counts,
		Documentos:       listing.Documents,
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	doc, err := s.deps.Review.Get(r.Context(), id)
	if err != nil {
		s.respondLookupError(w, r, err, msgGetFailed)
		return
	}
	respondJSON(w, http.StatusOK, documentResponse{Documento: doc})
}

func (s *Server) handleOriginalURL(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	doc, err := s.deps.Review.Get(r.Context(), id)
	if err != nil {
		s.respondLookupError(w, r, err, msgLinkFailed)
		return
	}
	if s.deps.Archive == nil {
		respondJSON(w, http.StatusNotFound, messageBody{Mensagem: msgNoOriginal})
		return
	}

	link, ttl, err := s.deps.Archive.PresignPayloadURL(r.Context(), doc.ID)
	if errors.Is(err, model.ErrNotFound) {
		respondJSON(w, http.StatusNotFound, messageBody{Mensagem: msgNoOriginal})
		return
	}
	if err != nil {
		s.internalError(w, r, err, msgLinkFailed)
		return
	}
	respondJSON(w, http.StatusOK, originalURLResponse{URL: link, ExpiraEm: int64(ttl.Seconds())})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req approveRequest
	if err := decodeOptionalJSON(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes), &req); err != nil {
		respondJSON(w, http.StatusBadRequest, messageBody{Mensagem: msgInvalidBody})
		return
	}

	res, err := s.deps.Approval.Approve(r.Context(), id, req.Aprovador)
	if err != nil {
		s.respondLookupError(w, r, err, msgApproveFailed)
		return
	}
	respondJSON(w, http.StatusOK, approveResponse{
		Mensagem:    fmt.Sprintf("Documento %s aprovado e pronto para pagamento.", res.ID),
		Modificados: res.Modified,
	})
}

// pathID reads the {id} segment, answering 400 itself when it is blank.
func pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		respondJSON(w, http.StatusBadRequest, messageBody{Mensagem: msgIDRequired})
		return "", false
	}
	return id, true
}

// decodeOptionalJSON decodes body into v. An empty body leaves v untouched.
func decodeOptionalJSON(body io.Reader, v any) error {
	raw, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}
