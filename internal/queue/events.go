// Package queue defines the workflow events and carries them to workers over
// Redis with asynq.
package queue

import (
	"encoding/json"
	"fmt"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"

	"github.com/luizacavalcantee/gestao-fiscal/internal/model"
)

const (
	// EventSource identifies this service as the event producer.
	EventSource = "/gestao-fiscal/documentos"

	// EventCaptured is emitted after a document is stored.
	EventCaptured = "documento.capturado"
	// EventApproved is emitted after an approval is written.
	EventApproved = "documento.aprovado"
)

// CapturedData is the payload of EventCaptured. Payload is the request body
// exactly as received.
type CapturedData struct {
	ID      string             `json:"_id"`
	Tipo    model.DocumentType `json:"tipo_documento"`
	Numero  string             `json:"numero"`
	Payload json.RawMessage    `json:"payload"`
}

// ApprovedData is the payload of EventApproved.
type ApprovedData struct {
	ID            string       `json:"_id"`
	Status        model.Status `json:"status"`
	Aprovador     string       `json:"aprovador"`
	DataAprovacao time.Time    `json:"data_aprovacao"`
}

// NewCapturedEvent builds the event announcing a stored document.
func NewCapturedEvent(d *model.Document, raw []byte) (cloudevents.Event, error) {
	return newEvent(EventCaptured, d.ID, d.DataRecebimento, CapturedData{
		ID:      d.ID,
		Tipo:    d.Tipo,
		Numero:  d.Numero,
		Payload: json.RawMessage(raw),
	})
}

// NewApprovedEvent builds the event announcing an approval.
func NewApprovedEvent(id string, u model.StatusUpdate) (cloudevents.Event, error) {
	return newEvent(EventApproved, id, u.DataAprovacao, ApprovedData{
		ID:            id,
		Status:        u.Status,
		Aprovador:     u.Aprovador,
		DataAprovacao: u.DataAprovacao,
	})
}

func newEvent(typ, subject string, at time.Time, data any) (cloudevents.Event, error) {
	e := cloudevents.NewEvent()
	e.SetID(uuid.NewString())
	e.SetSource(EventSource)
	e.SetType(typ)
	e.SetSubject(subject)
	e.SetTime(at)
	if err := e.SetData(cloudevents.ApplicationJSON, data); err != nil {
		return e, fmt.Errorf("set %s data: %w", typ, err)
	}
	if err := e.Validate(); err != nil {
		return e, fmt.Errorf("validate %s: %w", typ, err)
	}
	return e, nil
}

// Encode serializes e in the CloudEvents JSON format.
func Encode(e cloudevents.Event) ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return b, nil
}

// Decode parses and validates a CloudEvents JSON document.
func Decode(b []byte) (cloudevents.Event, error) {
	e := cloudevents.NewEvent()
	if err := json.Unmarshal(b, &e); err != nil {
		return e, fmt.Errorf("decode event: %w", err)
	}
	if err := e.Validate(); err != nil {
		return e, fmt.Errorf("decode event: %w", err)
	}
	return e, nil
}

// CapturedFrom extracts the EventCaptured payload.
func CapturedFrom(e cloudevents.Event) (CapturedData, error) {
	var d CapturedData
	if e.Type() != EventCaptured {
		return d, fmt.Errorf("event type %q is not %q", e.Type(), EventCaptured)
	}
	if err := e.DataAs(&d); err != nil {
		return d, fmt.Errorf("decode %s data: %w", EventCaptured, err)
	}
	return d, nil
}

// ApprovedFrom extracts the EventApproved payload.
func ApprovedFrom(e cloudevents.Event) (ApprovedData, error) {
	var d ApprovedData
	if e.Type() != EventApproved {
		return d, fmt.Errorf("event type %q is not %q", e.Type(), EventApproved)
	}
	if err := e.DataAs(&d); err != nil {
		return d, fmt.Errorf("decode %s data: %w", EventApproved, err)
	}
	return d, nil
}
