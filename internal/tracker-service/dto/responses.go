package dto

import "github.com/mlaurent/parlay-tracker/internal/tracker-service/engine"

// Sync reflete o resultado da escrita no espelho remoto após a mutação:
// "ok" ou "error". Uma falha de sync nunca desfaz a mutação local.
type BetResponse struct {
	Bet  engine.Bet `json:"bet"`
	Sync string     `json:"sync"`
}

type SettleBetResponse struct {
	Bet           engine.Bet     `json:"bet"`
	Session       engine.Session `json:"session"`
	SessionClosed bool           `json:"session_closed"`
	Sync          string         `json:"sync"`
}

type SessionResponse struct {
	Session engine.Session `json:"session"`
	Sync    string         `json:"sync"`
}

type DeleteBetResponse struct {
	Deleted bool   `json:"deleted"`
	Sync    string `json:"sync"`
}

type StakeResponse struct {
	Amount float64 `json:"amount"`
	Sync   string  `json:"sync"`
}

type ProjectionsResponse struct {
	Base        float64   `json:"base"`
	Multiplier  float64   `json:"multiplier"`
	Projections []float64 `json:"projections"`
}

type SyncResponse struct {
	Sync string `json:"sync"`
}
