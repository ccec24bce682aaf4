package types

import (
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// Market represents a prediction market from the Gamma API. Gamma encodes
// list fields (outcomes, clobTokenIds, outcomePrices) either as native JSON
// arrays or as JSON-encoded strings depending on the endpoint; UnmarshalJSON
// accepts both shapes.
type Market struct {
	ConditionID   string
	Question      string
	Slug          string
	Active        bool
	Closed        bool
	BestAsk       *float64
	BestBid       *float64
	Outcomes      []string
	ClobTokenIDs  []string
	OutcomePrices []float64
	Tokens        []OutcomeToken
}

// OutcomeToken is one side of a binary market.
type OutcomeToken struct {
	TokenID string  `json:"token_id"`
	Outcome string  `json:"outcome"`
	Price   float64 `json:"price,omitempty"`
}

type marketWire struct {
	ConditionID   string          `json:"conditionId"`
	ConditionIDlc string          `json:"condition_id"`
	Question      string          `json:"question"`
	Slug          string          `json:"slug"`
	Active        bool            `json:"active"`
	Closed        bool            `json:"closed"`
	BestAsk       *float64        `json:"bestAsk"`
	BestBid       *float64        `json:"bestBid"`
	Outcomes      json.RawMessage `json:"outcomes"`
	ClobTokenIDs  json.RawMessage `json:"clobTokenIds"`
	OutcomePrices json.RawMessage `json:"outcomePrices"`
	Tokens        []tokenWire     `json:"tokens"`
}

type tokenWire struct {
	TokenID  string  `json:"token_id"`
	TokenID2 string  `json:"tokenId"`
	ID       string  `json:"id"`
	Outcome  string  `json:"outcome"`
	Price    float64 `json:"price"`
}

// UnmarshalJSON normalizes the two known market shapes: an inline tokens
// list, or parallel outcomes/clobTokenIds arrays (possibly JSON-encoded
// strings).
func (m *Market) UnmarshalJSON(data []byte) error {
	var w marketWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	m.ConditionID = w.ConditionID
	if m.ConditionID == "" {
		m.ConditionID = w.ConditionIDlc
	}
	m.Question = w.Question
	m.Slug = w.Slug
	m.Active = w.Active
	m.Closed = w.Closed
	m.BestAsk = w.BestAsk
	m.BestBid = w.BestBid
	m.Outcomes = decodeStringList(w.Outcomes)
	m.ClobTokenIDs = decodeStringList(w.ClobTokenIDs)
	m.OutcomePrices = decodeFloatList(w.OutcomePrices)

	m.Tokens = m.Tokens[:0]
	for _, t := range w.Tokens {
		id := t.TokenID
		if id == "" {
			id = t.TokenID2
		}
		if id == "" {
			id = t.ID
		}
		if id == "" {
			continue
		}
		m.Tokens = append(m.Tokens, OutcomeToken{TokenID: id, Outcome: t.Outcome, Price: t.Price})
	}

	return nil
}

// decodeStringList accepts either ["a","b"] or "[\"a\",\"b\"]".
func decodeStringList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}

	var encoded string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return nil
	}
	if err := json.Unmarshal([]byte(encoded), &list); err != nil {
		return nil
	}

	return list
}

// decodeFloatList accepts [0.5, 0.5], ["0.5","0.5"] or the JSON-encoded
// string forms of either.
func decodeFloatList(raw json.RawMessage) []float64 {
	if len(raw) == 0 {
		return nil
	}

	var floats []float64
	if err := json.Unmarshal(raw, &floats); err == nil {
		return floats
	}

	out := make([]float64, 0, 2)
	for _, s := range decodeStringList(raw) {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil
		}
		out = append(out, f)
	}

	if len(out) == 0 {
		return nil
	}

	return out
}
