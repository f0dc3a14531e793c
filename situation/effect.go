package situation

import (
	"encoding/json"
	"fmt"
)

// EffectType discriminates the Effect sum type on the wire.
type EffectType string

const (
	EffectAddItem       EffectType = "add_item"
	EffectRemoveItem    EffectType = "remove_item"
	EffectTransferItem  EffectType = "transfer_item"
	EffectRandomOutcome EffectType = "random_outcome"
	EffectMessage       EffectType = "message"
)

// Effect is the closed sum type every mutation and log entry is built
// from. Concrete types are AddItemEffect, RemoveItemEffect,
// TransferItemEffect, RandomOutcomeEffect, and MessageEffect.
type Effect interface {
	EffectType() EffectType
}

// Quantity is either a literal non-negative integer or a single-token
// parameter reference (e.g. "{amount}") substituted per invocation.
type Quantity struct {
	IsParam bool
	Literal int
	Param   string
}

// LiteralQuantity builds a Quantity holding a literal integer.
func LiteralQuantity(n int) Quantity { return Quantity{Literal: n} }

// ParamQuantity builds a Quantity holding a parameter reference such as
// "{amount}".
func ParamQuantity(ref string) Quantity { return Quantity{IsParam: true, Param: ref} }

func (q Quantity) MarshalJSON() ([]byte, error) {
	if q.IsParam {
		return json.Marshal(q.Param)
	}
	return json.Marshal(q.Literal)
}

func (q *Quantity) UnmarshalJSON(data []byte) error {
	var asInt int
	if err := json.Unmarshal(data, &asInt); err == nil {
		*q = Quantity{Literal: asInt}
		return nil
	}
	var asString string
	if err := json.Unmarshal(data, &asString); err != nil {
		return fmt.Errorf("quantity must be an integer or a parameter reference string: %w", err)
	}
	*q = Quantity{IsParam: true, Param: asString}
	return nil
}

// AddItemEffect adds Quantity of ItemName to Target's inventory, clamped
// to a non-negative result.
type AddItemEffect struct {
	Target   string   `json:"target"`
	ItemName string   `json:"item_name"`
	Quantity Quantity `json:"quantity"`
}

func (AddItemEffect) EffectType() EffectType { return EffectAddItem }

// RemoveItemEffect removes up to Quantity of ItemName from Target's
// inventory; it never drives the count below zero.
type RemoveItemEffect struct {
	Target   string   `json:"target"`
	ItemName string   `json:"item_name"`
	Quantity Quantity `json:"quantity"`
}

func (RemoveItemEffect) EffectType() EffectType { return EffectRemoveItem }

// TransferItemEffect moves min(source.current, Quantity) of ItemName from
// Source to Target.
type TransferItemEffect struct {
	Source   string   `json:"source"`
	Target   string   `json:"target"`
	ItemName string   `json:"item_name"`
	Quantity Quantity `json:"quantity"`
}

func (TransferItemEffect) EffectType() EffectType { return EffectTransferItem }

// Outcome is one weighted branch of a RandomOutcomeEffect.
type Outcome struct {
	Probability float64 `json:"probability"`
	Effects     Effects `json:"effects"`
	Description string  `json:"description"`
}

// RandomOutcomeEffect draws uniformly in [0,1) and recursively applies the
// first outcome whose cumulative probability covers the draw, falling
// back to the last outcome if the cumulative distribution is short.
type RandomOutcomeEffect struct {
	Outcomes []Outcome `json:"outcomes"`
}

func (RandomOutcomeEffect) EffectType() EffectType { return EffectRandomOutcome }

// MessageEffect records a transcript log entry; agent-originated messages
// flow through AgentAction.MessagesToSend instead, never through this
// effect.
type MessageEffect struct {
	Target      string `json:"target"`
	MessageText string `json:"message_text"`
}

func (MessageEffect) EffectType() EffectType { return EffectMessage }

// Effects is a JSON-serializable list of the Effect sum type, keyed on
// each element's "type" discriminator.
type Effects []Effect

type effectEnvelope struct {
	Type EffectType      `json:"type"`
	Body json.RawMessage `json:"-"`
}

func (e Effects) MarshalJSON() ([]byte, error) {
	out := make([]json.RawMessage, len(e))
	for i, eff := range e {
		body, err := json.Marshal(eff)
		if err != nil {
			return nil, err
		}
		merged, err := mergeType(body, eff.EffectType())
		if err != nil {
			return nil, err
		}
		out[i] = merged
	}
	return json.Marshal(out)
}

func mergeType(body []byte, t EffectType) (json.RawMessage, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, err
	}
	typeJSON, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	m["type"] = typeJSON
	return json.Marshal(m)
}

func (e *Effects) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	out := make(Effects, 0, len(raws))
	for _, raw := range raws {
		var disc struct {
			Type EffectType `json:"type"`
		}
		if err := json.Unmarshal(raw, &disc); err != nil {
			return err
		}
		var eff Effect
		switch disc.Type {
		case EffectAddItem:
			var v AddItemEffect
			if err := json.Unmarshal(raw, &v); err != nil {
				return err
			}
			eff = v
		case EffectRemoveItem:
			var v RemoveItemEffect
			if err := json.Unmarshal(raw, &v); err != nil {
				return err
			}
			eff = v
		case EffectTransferItem:
			var v TransferItemEffect
			if err := json.Unmarshal(raw, &v); err != nil {
				return err
			}
			eff = v
		case EffectRandomOutcome:
			var v RandomOutcomeEffect
			if err := json.Unmarshal(raw, &v); err != nil {
				return err
			}
			eff = v
		case EffectMessage:
			var v MessageEffect
			if err := json.Unmarshal(raw, &v); err != nil {
				return err
			}
			eff = v
		default:
			return fmt.Errorf("situation: unknown effect type %q", disc.Type)
		}
		out = append(out, eff)
	}
	*e = out
	return nil
}
