package dto

import "time"

// Forma consumida do evento session_closed (tópico Kafka).
// Mantida aqui para o worker não depender do produtor.
type SessionClosed struct {
	SessionID     string       `json:"session_id"`
	Status        string       `json:"status"`
	InitialStake  float64      `json:"initial_stake"`
	FinalBankroll float64      `json:"final_bankroll"`
	StepCount     int          `json:"step_count"`
	StartedAt     time.Time    `json:"started_at"`
	EndedAt       time.Time    `json:"ended_at"`
	Bets          []SessionBet `json:"bets"`
	TsUnixMs      int64        `json:"ts_unix_ms"`
}

type SessionBet struct {
	BetID       string     `json:"bet_id"`
	Legs        []Leg      `json:"legs"`
	CombinedOdd float64    `json:"combined_odd"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	SettledAt   *time.Time `json:"settled_at,omitempty"`
}

type Leg struct {
	Description string  `json:"description"`
	Odd         float64 `json:"odd"`
}
