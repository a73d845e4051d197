package dto

// MatchInput é uma seleção enviada na criação de aposta.
type MatchInput struct {
	Description string  `json:"description"`
	Odd         float64 `json:"odd"`
}

type CreateBetRequest struct {
	Match1 MatchInput  `json:"match1"`
	Match2 *MatchInput `json:"match2,omitempty"` // opcional (aposta simples)
}

type SettleBetRequest struct {
	Outcome string `json:"outcome"` // "won" | "lost"
}

type StartSessionRequest struct {
	InitialStake float64 `json:"initial_stake"`
	// Confirm = true indica que o usuário aprovou abandonar a sessão ativa
	Confirm bool `json:"confirm"`
}

type EndSessionRequest struct {
	Status string `json:"status"` // "success" | "failed" | "abandoned"
}

type SetStakeRequest struct {
	Amount float64 `json:"amount"`
}
