package topics

const (
	// Apostas
	BetSettled = "bet_settled"

	// Sessões
	SessionClosed = "session_closed"

	// DLQs
	SessionClosedDLQ = "session_closed_dlq"
)
