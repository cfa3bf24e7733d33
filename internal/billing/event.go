package billing

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/goclaw/backend/internal/apierr"
)

// EventOrderCreated is the only event type that changes state.
const EventOrderCreated = "order.created"

//go:embed schemas/*.json
var schemaFS embed.FS

// Event is the provider envelope.
type Event struct {
	Type string          `json:"type"`
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`

	// HasProviderID is false when the envelope carried no id and ID was
	// derived from the body hash.
	HasProviderID bool `json:"-"`
}

// OrderCreated is the data of an order.created event.
type OrderCreated struct {
	CustomerEmail string `json:"customer_email"`
	ProductID     string `json:"product_id"`
	Tier          string `json:"tier"`
}

// Parser validates envelopes and event data against embedded JSON schemas.
type Parser struct {
	envelope     *jsonschema.Schema
	orderCreated *jsonschema.Schema
}

func NewParser() (*Parser, error) {
	envelope, err := compile("envelope")
	if err != nil {
		return nil, err
	}
	order, err := compile("order_created")
	if err != nil {
		return nil, err
	}
	return &Parser{envelope: envelope, orderCreated: order}, nil
}

func compile(name string) (*jsonschema.Schema, error) {
	data, err := schemaFS.ReadFile("schemas/" + name + ".json")
	if err != nil {
		return nil, fmt.Errorf("read schema %q: %w", name, err)
	}
	s, err := jsonschema.CompileString("https://goclaw.dev/schemas/polar/"+name+".json", string(data))
	if err != nil {
		return nil, fmt.Errorf("compile schema %q: %w", name, err)
	}
	return s, nil
}

// ParseEvent decodes and validates the envelope. An event without an id
// gets "hash:<sha256 of body>" so redeliveries of the same bytes dedupe.
func (p *Parser) ParseEvent(body []byte) (*Event, error) {
	if err := validateDoc(p.envelope, body); err != nil {
		return nil, err
	}
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, apierr.Validation("malformed event")
	}
	ev.ID = strings.TrimSpace(ev.ID)
	ev.HasProviderID = ev.ID != ""
	if !ev.HasProviderID {
		sum := sha256.Sum256(body)
		ev.ID = "hash:" + hex.EncodeToString(sum[:])
	}
	return &ev, nil
}

// ParseOrderCreated validates and decodes the data of an order.created event.
func (p *Parser) ParseOrderCreated(data json.RawMessage) (*OrderCreated, error) {
	if len(data) == 0 {
		return nil, apierr.Validation("order.created event has no data")
	}
	if err := validateDoc(p.orderCreated, data); err != nil {
		return nil, err
	}
	var o OrderCreated
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, apierr.Validation("malformed order data")
	}
	o.CustomerEmail = strings.TrimSpace(o.CustomerEmail)
	return &o, nil
}

func validateDoc(schema *jsonschema.Schema, raw []byte) error {
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return apierr.Validation("malformed event")
	}
	if err := schema.Validate(doc); err != nil {
		return &apierr.Error{Kind: apierr.KindValidation, Message: "event does not match schema", Err: err}
	}
	return nil
}
