package events

import "time"

// Leg de uma aposta dentro do snapshot congelado da sessão.
type SessionBetLeg struct {
	Description string  `json:"description"`
	Odd         float64 `json:"odd"`
}

// Aposta congelada no fechamento da sessão.
type SessionBet struct {
	BetID       string          `json:"bet_id"`
	Legs        []SessionBetLeg `json:"legs"`
	CombinedOdd float64         `json:"combined_odd"`
	Status      string          `json:"status"` // "pending" | "won" | "lost"
	CreatedAt   time.Time       `json:"created_at"`
	SettledAt   *time.Time      `json:"settled_at,omitempty"`
}

// Evento publicado no tópico "session_closed" quando uma sessão termina,
// seja por liquidação (failed/success) ou por encerramento explícito.
type SessionClosed struct {
	SessionID     string       `json:"session_id"`
	Status        string       `json:"status"` // "success" | "failed" | "abandoned"
	InitialStake  float64      `json:"initial_stake"`
	FinalBankroll float64      `json:"final_bankroll"`
	StepCount     int          `json:"step_count"`
	StartedAt     time.Time    `json:"started_at"`
	EndedAt       time.Time    `json:"ended_at"`
	Bets          []SessionBet `json:"bets"`
	TsUnixMs      int64        `json:"ts_unix_ms"`
}
