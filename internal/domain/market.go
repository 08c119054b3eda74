package domain

import "time"

// Market is an LMSR market bound to an event.
//
// Funding is always expressed in base units (wei of the wrapped token) for
// the whole life of the record. NetOutcomeTokensSold, when set, holds the
// signed per-outcome quantities already sold, also in base units.
type Market struct {
	Event         string `json:"event"`
	MarketMaker   string `json:"marketMaker,omitempty"`
	MarketFactory string `json:"marketFactory,omitempty"`
	Fee           uint32 `json:"fee"`
	Funding       string `json:"funding"`

	NetOutcomeTokensSold []string `json:"netOutcomeTokensSold,omitempty"`

	Address string `json:"address,omitempty"`
	TxHash  string `json:"txHash,omitempty"`

	// FundTxHash is the most recent funding transaction.
	FundTxHash string `json:"fundTxHash,omitempty"`
}

// Trade is a request to buy outcome tokens with collateral given in human
// units.
type Trade struct {
	Market           string `json:"market"`
	OutcomeIndex     int    `json:"outcomeIndex"`
	CollateralAmount string `json:"collateralAmount"`
}

// TradeResult describes a confirmed buy.
type TradeResult struct {
	Market            string    `json:"market"`
	OutcomeIndex      int       `json:"outcomeIndex"`
	OutcomeTokenCount string    `json:"outcomeTokenCount"`
	MaxCost           string    `json:"maxCost"`
	Cost              string    `json:"cost,omitempty"`
	TxHash            string    `json:"txHash"`
	BlockNumber       uint64    `json:"blockNumber"`
	ExecutedAt        time.Time `json:"executedAt"`
}
