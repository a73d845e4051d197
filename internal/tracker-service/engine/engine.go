package engine

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mlaurent/parlay-tracker/internal/tracker-service/odds"
)

// Statuts de aposta (valores persistidos no espelho, em minúsculas)
const (
	BetPending = "pending"
	BetWon     = "won"
	BetLost    = "lost"
)

// Statuts de sessão
const (
	SessionInProgress = "in_progress"
	SessionSuccess    = "success"
	SessionFailed     = "failed"
	SessionAbandoned  = "abandoned"
)

// TargetStepCount é a profundidade da escada de compounding: uma sessão
// fecha como success ao atingir 10 apostas ganhas consecutivas.
const TargetStepCount = 10

// ProjectionMultiplier é a cote assumida por degrau na curva de projeção.
const ProjectionMultiplier = 1.7

var (
	ErrInvalidState = errors.New("invalid state")
	ErrNotFound     = errors.New("not found")
)

// ConfirmFunc é a capability de confirmação para operações destrutivas
// (sobrescrever sessão ativa, apagar aposta). Retornar false aborta a
// operação sem nenhuma mutação.
type ConfirmFunc func(prompt string) bool

// Bet é uma aposta da lista de trabalho da sessão ativa.
// CombinedOdd é calculada uma única vez na criação, a partir das cotes
// das legs, e nunca mais muda.
type Bet struct {
	ID          string     `json:"id"`
	Legs        []odds.Leg `json:"legs"`
	CombinedOdd float64    `json:"combined_odd"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	SettledAt   *time.Time `json:"settled_at,omitempty"`
}

// Session é uma sequência limitada de apostas jogadas contra um bankroll
// em compounding. Fechada, vira entrada imutável do histórico.
type Session struct {
	ID              string     `json:"id"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	Status          string     `json:"status"`
	InitialStake    float64    `json:"initial_stake"`
	CurrentBankroll float64    `json:"current_bankroll"`
	StepCount       int        `json:"step_count"`
	Bets            []Bet      `json:"bets"`
}

// SettlementResult é o retorno de SettleBet: snapshot da sessão após a
// liquidação e se ela fechou (e com qual evento de fechamento).
type SettlementResult struct {
	Bet     Bet
	Session Session
	Closed  bool
}

// Stats são os contadores exibidos sobre a lista de trabalho.
type Stats struct {
	Won  int `json:"won"`
	Lost int `json:"lost"`
}

// Snapshot é a visão somente-leitura entregue ao espelho de persistência
// e ao board após cada mutação.
type Snapshot struct {
	Bets           []Bet     `json:"bets"`
	CurrentSession *Session  `json:"current_session,omitempty"`
	Sessions       []Session `json:"sessions"`
	DefaultStake   float64   `json:"default_stake"`
	Stats          Stats     `json:"stats"`
	Projections    []float64 `json:"projections"`
	// ProgressionPct é derivado: (bankroll/mise inicial - 1) * 100.
	// Zero quando não há sessão ativa.
	ProgressionPct float64 `json:"progression_pct"`
}

// Engine é a instância explícita que guarda a sessão ativa, a lista de
// trabalho e o histórico. O mutex garante que cada operação rode até o fim
// antes da próxima; nenhuma operação suspende no meio de uma mutação.
type Engine struct {
	mu sync.Mutex

	defaultStake float64
	current      *Session
	bets         []Bet
	history      []Session

	now   func() time.Time
	newID func() string
}

func New(defaultStake float64) *Engine {
	if defaultStake <= 0 {
		defaultStake = 10
	}
	return &Engine{
		defaultStake: defaultStake,
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

// StartSession cria uma nova sessão com bankroll = mise inicial e lista de
// apostas vazia. Com uma sessão já ativa, exige confirmação: confirmada, a
// sessão atual é fechada como abandoned antes; recusada (ou confirm nil),
// ErrInvalidState e nenhuma mutação.
func (e *Engine) StartSession(initialStake float64, confirm ConfirmFunc) (*Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if initialStake <= 0 {
		initialStake = e.defaultStake
	}

	if e.current != nil {
		if confirm == nil || !confirm("a session is already in progress; abandon it and start a new one?") {
			return nil, ErrInvalidState
		}
		e.closeLocked(SessionAbandoned)
	}

	s := &Session{
		ID:              e.newID(),
		StartedAt:       e.now(),
		Status:          SessionInProgress,
		InitialStake:    initialStake,
		CurrentBankroll: initialStake,
		Bets:            []Bet{},
	}
	e.current = s
	e.bets = nil

	cp := cloneSession(s)
	return &cp, nil
}

// RecordBet valida as legs e anexa uma aposta pending à sessão ativa.
// Não mexe em bankroll nem em step count até a liquidação.
func (e *Engine) RecordBet(legs []odds.Leg) (*Bet, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil {
		return nil, ErrInvalidState
	}
	if err := odds.ValidateLegs(legs); err != nil {
		return nil, err
	}

	var odd2 *float64
	if len(legs) == 2 {
		odd2 = &legs[1].Odd
	}

	b := Bet{
		ID:          e.newID(),
		Legs:        append([]odds.Leg(nil), legs...),
		CombinedOdd: odds.CombineOdds(legs[0].Odd, odd2),
		Status:      BetPending,
		CreatedAt:   e.now(),
	}
	e.bets = append(e.bets, b)
	e.current.Bets = cloneBets(e.bets)

	cp := cloneBet(&b)
	return &cp, nil
}

// SettleBet marca o resultado de uma aposta (uma única vez), recalcula
// bankroll e step count pelo replay das apostas ganhas em ordem de
// liquidação, e aplica a regra de transição: lost fecha como failed,
// step count no alvo fecha como success, senão a sessão continua.
func (e *Engine) SettleBet(betID string, outcome string) (*SettlementResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil {
		return nil, ErrInvalidState
	}
	if outcome != BetWon && outcome != BetLost {
		return nil, &odds.ValidationError{Reason: "outcome must be won or lost"}
	}

	idx := e.findBetLocked(betID)
	if idx < 0 {
		return nil, ErrNotFound
	}
	if e.bets[idx].Status != BetPending {
		// resultado de aposta liquidada é imutável
		return nil, ErrInvalidState
	}

	ts := e.now()
	e.bets[idx].Status = outcome
	e.bets[idx].SettledAt = &ts

	e.replayLocked()

	res := &SettlementResult{Bet: cloneBet(&e.bets[idx])}

	switch {
	case outcome == BetLost:
		res.Session = e.closeLocked(SessionFailed)
		res.Closed = true
	case e.current.StepCount >= TargetStepCount:
		res.Session = e.closeLocked(SessionSuccess)
		res.Closed = true
	default:
		res.Session = cloneSession(e.current)
	}

	return res, nil
}

// DeleteBet remove uma aposta da lista de trabalho (qualquer status, uso de
// correção de lançamento errado) e recalcula bankroll/steps como se ela
// nunca tivesse sido registrada. Exige sessão ativa e confirmação.
func (e *Engine) DeleteBet(betID string, confirm ConfirmFunc) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil {
		return ErrInvalidState
	}
	idx := e.findBetLocked(betID)
	if idx < 0 {
		return ErrNotFound
	}
	if confirm == nil || !confirm("delete this bet?") {
		return ErrInvalidState
	}

	e.bets = append(e.bets[:idx], e.bets[idx+1:]...)
	e.replayLocked()
	e.current.Bets = cloneBets(e.bets)

	return nil
}

// EndSession fecha a sessão ativa com o status dado, congela a lista de
// apostas no histórico e limpa a sessão corrente e a lista de trabalho.
func (e *Engine) EndSession(status string) (*Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil {
		return nil, ErrInvalidState
	}
	if status != SessionSuccess && status != SessionFailed && status != SessionAbandoned {
		return nil, ErrInvalidState
	}

	closed := e.closeLocked(status)
	return &closed, nil
}

// ProjectBankroll devolve a curva hipotética de 10 degraus: cada valor é o
// acumulado multiplicado pela cote assumida, arredondado a 2 casas na
// saída. Independe dos resultados reais. base <= 0 usa a mise inicial da
// sessão ativa, senão a mise padrão.
func (e *Engine) ProjectBankroll(base float64) []float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.projectLocked(base)
}

func (e *Engine) projectLocked(base float64) []float64 {
	if base <= 0 {
		if e.current != nil {
			base = e.current.InitialStake
		} else {
			base = e.defaultStake
		}
	}

	out := make([]float64, TargetStepCount)
	acc := base
	for i := range out {
		acc *= ProjectionMultiplier
		out[i] = odds.Round2(acc)
	}
	return out
}

// SetDefaultStake ajusta a mise padrão (persistida junto com a lista de
// trabalho, como no armazenamento original).
func (e *Engine) SetDefaultStake(amount float64) error {
	if amount <= 0 {
		return ErrInvalidState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.defaultStake = amount
	return nil
}

func (e *Engine) DefaultStake() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.defaultStake
}

// CurrentSession retorna uma cópia da sessão ativa, ou nil.
func (e *Engine) CurrentSession() *Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return nil
	}
	cp := cloneSession(e.current)
	return &cp
}

// History retorna as sessões fechadas ordenadas por data de início.
// As entradas armazenadas nunca são mutadas; a ordenação é sobre cópias.
func (e *Engine) History() []Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.historyLocked()
}

func (e *Engine) historyLocked() []Session {
	out := cloneSessions(e.history)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// Snapshot monta a visão somente-leitura completa para o espelho e o board.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{
		Bets:         cloneBets(e.bets),
		Sessions:     e.historyLocked(),
		DefaultStake: e.defaultStake,
		Projections:  e.projectLocked(0),
	}
	for _, b := range e.bets {
		switch b.Status {
		case BetWon:
			snap.Stats.Won++
		case BetLost:
			snap.Stats.Lost++
		}
	}
	if e.current != nil {
		cp := cloneSession(e.current)
		snap.CurrentSession = &cp
		if e.current.InitialStake > 0 {
			snap.ProgressionPct = odds.Round2((e.current.CurrentBankroll/e.current.InitialStake - 1) * 100)
		}
	}
	return snap
}

// Hydrate restaura o estado a partir do espelho remoto (boot ou re-sync).
// Substitui lista de trabalho, sessão corrente, histórico e mise padrão.
func (e *Engine) Hydrate(bets []Bet, current *Session, history []Session, defaultStake float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.bets = cloneBets(bets)
	e.history = cloneSessions(history)
	if defaultStake > 0 {
		e.defaultStake = defaultStake
	}
	if current != nil {
		cp := cloneSession(current)
		e.current = &cp
	} else {
		e.current = nil
	}
}

// replayLocked recalcula bankroll e step count do zero: mise inicial
// multiplicada pela cote combinada de cada aposta ganha, em ordem
// cronológica de liquidação, arredondando a cada passo. Idempotente e
// estável independente da ordem de declaração das apostas.
func (e *Engine) replayLocked() {
	if e.current == nil {
		return
	}

	won := make([]Bet, 0, len(e.bets))
	for _, b := range e.bets {
		if b.Status == BetWon {
			won = append(won, b)
		}
	}
	sort.SliceStable(won, func(i, j int) bool {
		ti, tj := won[i].SettledAt, won[j].SettledAt
		if ti == nil || tj == nil {
			return tj == nil && ti != nil
		}
		return ti.Before(*tj)
	})

	bankroll := e.current.InitialStake
	for _, b := range won {
		bankroll = odds.Round2(bankroll * b.CombinedOdd)
	}

	e.current.CurrentBankroll = bankroll
	e.current.StepCount = len(won)
	e.current.Bets = cloneBets(e.bets)
}

// closeLocked fecha a sessão corrente: carimba endedAt, congela uma cópia
// das apostas no histórico e limpa sessão e lista de trabalho.
func (e *Engine) closeLocked(status string) Session {
	ts := e.now()
	e.current.EndedAt = &ts
	e.current.Status = status
	e.current.Bets = cloneBets(e.bets)

	closed := cloneSession(e.current)
	e.history = append(e.history, closed)

	e.current = nil
	e.bets = nil

	return cloneSession(&closed)
}

func (e *Engine) findBetLocked(betID string) int {
	for i := range e.bets {
		if e.bets[i].ID == betID {
			return i
		}
	}
	return -1
}

func cloneBet(b *Bet) Bet {
	cp := *b
	cp.Legs = append([]odds.Leg(nil), b.Legs...)
	if b.SettledAt != nil {
		ts := *b.SettledAt
		cp.SettledAt = &ts
	}
	return cp
}

func cloneBets(bets []Bet) []Bet {
	out := make([]Bet, len(bets))
	for i := range bets {
		out[i] = cloneBet(&bets[i])
	}
	return out
}

func cloneSession(s *Session) Session {
	cp := *s
	cp.Bets = cloneBets(s.Bets)
	if s.EndedAt != nil {
		ts := *s.EndedAt
		cp.EndedAt = &ts
	}
	return cp
}

func cloneSessions(ss []Session) []Session {
	out := make([]Session, len(ss))
	for i := range ss {
		out[i] = cloneSession(&ss[i])
	}
	return out
}
