package types

import (
	json "github.com/goccy/go-json"
)

// DataPosition is one active position from the data-api positions endpoint.
type DataPosition struct {
	Asset        string  `json:"asset"`
	ConditionID  string  `json:"conditionId"`
	Title        string  `json:"title"`
	Slug         string  `json:"slug"`
	Outcome      string  `json:"outcome"`
	Size         float64 `json:"size"`
	AvgPrice     float64 `json:"avgPrice"`
	CurPrice     float64 `json:"curPrice"`
	InitialValue float64 `json:"initialValue"`
	CurrentValue float64 `json:"currentValue"`
	CashPnl      float64 `json:"cashPnl"`
	PercentPnl   float64 `json:"percentPnl"`
	Redeemable   bool    `json:"redeemable"`
}

// DecodePositions accepts both response shapes the data-api serves: a bare
// list, or a {"positions": [...]} envelope.
func DecodePositions(data []byte) ([]DataPosition, error) {
	var list []DataPosition
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}

	var envelope struct {
		Positions []DataPosition `json:"positions"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, err
	}

	return envelope.Positions, nil
}
