package engine

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlaurent/parlay-tracker/internal/tracker-service/odds"
)

// newTestEngine injeta relógio e gerador de id determinísticos.
func newTestEngine(t *testing.T, defaultStake float64) *Engine {
	t.Helper()
	e := New(defaultStake)

	base := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	tick := 0
	e.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	seq := 0
	e.newID = func() string {
		seq++
		return fmt.Sprintf("id-%d", seq)
	}
	return e
}

func yes(string) bool { return true }
func no(string) bool  { return false }

func validLegs() []odds.Leg {
	return []odds.Leg{{Description: "PSG - OM", Odd: 1.70}}
}

func mustStart(t *testing.T, e *Engine, stake float64) *Session {
	t.Helper()
	s, err := e.StartSession(stake, nil)
	require.NoError(t, err)
	return s
}

func mustRecord(t *testing.T, e *Engine) *Bet {
	t.Helper()
	b, err := e.RecordBet(validLegs())
	require.NoError(t, err)
	return b
}

func TestStartSession(t *testing.T) {
	e := newTestEngine(t, 10)

	s := mustStart(t, e, 10)
	assert.Equal(t, SessionInProgress, s.Status)
	assert.Equal(t, 10.0, s.InitialStake)
	assert.Equal(t, 10.0, s.CurrentBankroll)
	assert.Equal(t, 0, s.StepCount)
	assert.Empty(t, s.Bets)
	assert.Nil(t, s.EndedAt)
}

func TestStartSessionWhileActive(t *testing.T) {
	e := newTestEngine(t, 10)
	first := mustStart(t, e, 10)

	// sem confirmação: ErrInvalidState, sessão original intocada
	_, err := e.StartSession(20, nil)
	assert.ErrorIs(t, err, ErrInvalidState)

	// confirmação recusada: idem
	_, err = e.StartSession(20, no)
	assert.ErrorIs(t, err, ErrInvalidState)

	cur := e.CurrentSession()
	require.NotNil(t, cur)
	assert.Equal(t, first.ID, cur.ID)
	assert.Empty(t, e.History())

	// confirmada: a anterior fecha como abandoned e vai pro histórico
	second, err := e.StartSession(20, yes)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 20.0, second.InitialStake)

	hist := e.History()
	require.Len(t, hist, 1)
	assert.Equal(t, first.ID, hist[0].ID)
	assert.Equal(t, SessionAbandoned, hist[0].Status)
	require.NotNil(t, hist[0].EndedAt)
}

func TestRecordBetRequiresSession(t *testing.T) {
	e := newTestEngine(t, 10)
	_, err := e.RecordBet(validLegs())
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestRecordBetValidation(t *testing.T) {
	e := newTestEngine(t, 10)
	mustStart(t, e, 10)

	_, err := e.RecordBet([]odds.Leg{{Description: "PSG - OM", Odd: 2.50}})
	assert.ErrorIs(t, err, odds.ErrValidation)

	// rejeição não muta nada
	assert.Empty(t, e.Snapshot().Bets)
}

func TestRecordBetPending(t *testing.T) {
	e := newTestEngine(t, 10)
	mustStart(t, e, 10)

	b := mustRecord(t, e)
	assert.Equal(t, BetPending, b.Status)
	assert.Equal(t, 1.70, b.CombinedOdd)
	assert.Nil(t, b.SettledAt)

	// pending não mexe em bankroll nem step
	cur := e.CurrentSession()
	assert.Equal(t, 10.0, cur.CurrentBankroll)
	assert.Equal(t, 0, cur.StepCount)
}

func TestSettleCompounding(t *testing.T) {
	e := newTestEngine(t, 10)
	mustStart(t, e, 10)

	b1 := mustRecord(t, e)
	res, err := e.SettleBet(b1.ID, BetWon)
	require.NoError(t, err)
	assert.False(t, res.Closed)
	assert.Equal(t, 17.00, res.Session.CurrentBankroll)
	assert.Equal(t, 1, res.Session.StepCount)

	// 17.00 × 1.70 arredondado a cada passo
	b2 := mustRecord(t, e)
	res, err = e.SettleBet(b2.ID, BetWon)
	require.NoError(t, err)
	assert.Equal(t, 28.90, res.Session.CurrentBankroll)
	assert.Equal(t, 2, res.Session.StepCount)
}

func TestReplayFollowsSettlementOrder(t *testing.T) {
	e := newTestEngine(t, 10)
	mustStart(t, e, 10)

	b1, err := e.RecordBet([]odds.Leg{{Description: "PSG - OM", Odd: 1.65}})
	require.NoError(t, err)
	b2, err := e.RecordBet([]odds.Leg{{Description: "OL - LOSC", Odd: 1.67}})
	require.NoError(t, err)

	// b2 liquida antes de b1: o replay segue a ordem de liquidação,
	// não a de registro
	res, err := e.SettleBet(b2.ID, BetWon)
	require.NoError(t, err)
	assert.Equal(t, 16.70, res.Session.CurrentBankroll)
	assert.Equal(t, 1, res.Session.StepCount)

	res, err = e.SettleBet(b1.ID, BetWon)
	require.NoError(t, err)
	// 10 → 16.70 → 27.55; na ordem de registro daria 27.56
	assert.Equal(t, 27.55, res.Session.CurrentBankroll)
	assert.Equal(t, 2, res.Session.StepCount)

	// apagar a liquidada primeiro recalcula como se nunca registrada
	require.NoError(t, e.DeleteBet(b2.ID, yes))
	cur := e.CurrentSession()
	assert.Equal(t, 16.50, cur.CurrentBankroll)
	assert.Equal(t, 1, cur.StepCount)
}

func TestSettleRejectsUnknownOutcome(t *testing.T) {
	e := newTestEngine(t, 10)
	mustStart(t, e, 10)
	b := mustRecord(t, e)

	_, err := e.SettleBet(b.ID, "draw")
	assert.ErrorIs(t, err, odds.ErrValidation)

	// rejeição não muta nada: a aposta continua pendente
	assert.Equal(t, BetPending, e.Snapshot().Bets[0].Status)
}

func TestSettleTwiceFails(t *testing.T) {
	e := newTestEngine(t, 10)
	mustStart(t, e, 10)
	b := mustRecord(t, e)

	_, err := e.SettleBet(b.ID, BetWon)
	require.NoError(t, err)

	// resultado liquidado é imutável
	_, err = e.SettleBet(b.ID, BetLost)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestSettleUnknownBet(t *testing.T) {
	e := newTestEngine(t, 10)
	mustStart(t, e, 10)

	_, err := e.SettleBet("nope", BetWon)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLostClosesSessionAsFailed(t *testing.T) {
	e := newTestEngine(t, 10)
	mustStart(t, e, 10)

	// três ganhas, uma pendente, uma perdida
	for i := 0; i < 3; i++ {
		b := mustRecord(t, e)
		_, err := e.SettleBet(b.ID, BetWon)
		require.NoError(t, err)
	}
	mustRecord(t, e)
	losing := mustRecord(t, e)

	res, err := e.SettleBet(losing.ID, BetLost)
	require.NoError(t, err)
	assert.True(t, res.Closed)
	assert.Equal(t, SessionFailed, res.Session.Status)
	require.NotNil(t, res.Session.EndedAt)

	// sessão corrente e lista de trabalho limpas
	assert.Nil(t, e.CurrentSession())
	assert.Empty(t, e.Snapshot().Bets)

	// histórico congela as 5 apostas com os statuts da hora do fechamento
	hist := e.History()
	require.Len(t, hist, 1)
	require.Len(t, hist[0].Bets, 5)
	assert.Equal(t, 3, hist[0].StepCount)

	statuses := map[string]int{}
	for _, b := range hist[0].Bets {
		statuses[b.Status]++
	}
	assert.Equal(t, 3, statuses[BetWon])
	assert.Equal(t, 1, statuses[BetPending])
	assert.Equal(t, 1, statuses[BetLost])
}

func TestTenWinsClosesSessionAsSuccess(t *testing.T) {
	e := newTestEngine(t, 10)
	mustStart(t, e, 10)

	var last *SettlementResult
	for i := 0; i < TargetStepCount; i++ {
		b := mustRecord(t, e)
		res, err := e.SettleBet(b.ID, BetWon)
		require.NoError(t, err)
		last = res
	}

	require.NotNil(t, last)
	assert.True(t, last.Closed)
	assert.Equal(t, SessionSuccess, last.Session.Status)
	assert.Equal(t, TargetStepCount, last.Session.StepCount)

	// sessão já fechada: endSession falha
	_, err := e.EndSession(SessionAbandoned)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestEndSession(t *testing.T) {
	e := newTestEngine(t, 10)
	mustStart(t, e, 10)
	mustRecord(t, e)

	s, err := e.EndSession(SessionAbandoned)
	require.NoError(t, err)
	assert.Equal(t, SessionAbandoned, s.Status)
	require.NotNil(t, s.EndedAt)
	assert.Len(t, s.Bets, 1)

	assert.Nil(t, e.CurrentSession())
	assert.Empty(t, e.Snapshot().Bets)

	_, err = e.EndSession(SessionFailed)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestEndSessionRejectsInProgress(t *testing.T) {
	e := newTestEngine(t, 10)
	mustStart(t, e, 10)

	_, err := e.EndSession(SessionInProgress)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestDeleteBetRecomputes(t *testing.T) {
	e := newTestEngine(t, 10)
	mustStart(t, e, 10)

	b1 := mustRecord(t, e)
	b2 := mustRecord(t, e)

	_, err := e.SettleBet(b1.ID, BetWon)
	require.NoError(t, err)
	_, err = e.SettleBet(b2.ID, BetWon)
	require.NoError(t, err)
	assert.Equal(t, 28.90, e.CurrentSession().CurrentBankroll)

	// apagar a primeira ganha: como se nunca tivesse sido registrada
	require.NoError(t, e.DeleteBet(b1.ID, yes))

	cur := e.CurrentSession()
	assert.Equal(t, 17.00, cur.CurrentBankroll)
	assert.Equal(t, 1, cur.StepCount)
	assert.Len(t, cur.Bets, 1)
}

func TestDeleteBetGuards(t *testing.T) {
	e := newTestEngine(t, 10)

	// sem sessão ativa
	assert.ErrorIs(t, e.DeleteBet("x", yes), ErrInvalidState)

	mustStart(t, e, 10)
	b := mustRecord(t, e)

	// id desconhecido
	assert.ErrorIs(t, e.DeleteBet("nope", yes), ErrNotFound)

	// confirmação recusada: aposta continua lá
	assert.ErrorIs(t, e.DeleteBet(b.ID, no), ErrInvalidState)
	assert.Len(t, e.Snapshot().Bets, 1)
}

func TestProjectBankroll(t *testing.T) {
	e := newTestEngine(t, 10)

	proj := e.ProjectBankroll(10)
	require.Len(t, proj, TargetStepCount)
	assert.Equal(t, 17.00, proj[0])
	assert.Equal(t, 28.90, proj[1])

	// décimo degrau = round(10 × 1.7^10, 2)
	want := math.Round(10*math.Pow(ProjectionMultiplier, 10)*100) / 100
	assert.Equal(t, want, proj[9])
}

func TestProjectBankrollBaseFallback(t *testing.T) {
	e := newTestEngine(t, 10)

	// sem sessão ativa: mise padrão
	assert.Equal(t, 17.00, e.ProjectBankroll(0)[0])

	// com sessão ativa: mise inicial da sessão
	mustStart(t, e, 25)
	assert.Equal(t, 42.50, e.ProjectBankroll(0)[0])

	// base explícita vence
	assert.Equal(t, 170.00, e.ProjectBankroll(100)[0])
}

func TestSnapshotStatsAndProgression(t *testing.T) {
	e := newTestEngine(t, 10)
	mustStart(t, e, 10)

	b1 := mustRecord(t, e)
	b2 := mustRecord(t, e)
	mustRecord(t, e)

	_, err := e.SettleBet(b1.ID, BetWon)
	require.NoError(t, err)
	_, err = e.SettleBet(b2.ID, BetWon)
	require.NoError(t, err)

	snap := e.Snapshot()
	assert.Equal(t, 2, snap.Stats.Won)
	assert.Equal(t, 0, snap.Stats.Lost)
	require.NotNil(t, snap.CurrentSession)
	// 28.90 / 10 => +189%
	assert.Equal(t, 189.00, snap.ProgressionPct)
	assert.Len(t, snap.Projections, TargetStepCount)
}

func TestHistoryOrderedByStart(t *testing.T) {
	e := newTestEngine(t, 10)

	for i := 0; i < 3; i++ {
		mustStart(t, e, 10)
		_, err := e.EndSession(SessionAbandoned)
		require.NoError(t, err)
	}

	hist := e.History()
	require.Len(t, hist, 3)
	assert.True(t, hist[0].StartedAt.Before(hist[1].StartedAt))
	assert.True(t, hist[1].StartedAt.Before(hist[2].StartedAt))
}

func TestHydrateRestoresState(t *testing.T) {
	e := newTestEngine(t, 10)
	mustStart(t, e, 10)
	b := mustRecord(t, e)
	_, err := e.SettleBet(b.ID, BetWon)
	require.NoError(t, err)

	snap := e.Snapshot()

	restored := newTestEngine(t, 5)
	restored.Hydrate(snap.Bets, snap.CurrentSession, snap.Sessions, snap.DefaultStake)

	cur := restored.CurrentSession()
	require.NotNil(t, cur)
	assert.Equal(t, 17.00, cur.CurrentBankroll)
	assert.Equal(t, 10.0, restored.DefaultStake())
	assert.Len(t, restored.Snapshot().Bets, 1)
}

func TestHistoryEntriesImmutable(t *testing.T) {
	e := newTestEngine(t, 10)
	mustStart(t, e, 10)
	mustRecord(t, e)
	_, err := e.EndSession(SessionFailed)
	require.NoError(t, err)

	hist := e.History()
	hist[0].Status = "tampered"
	hist[0].Bets[0].Status = "tampered"

	again := e.History()
	assert.Equal(t, SessionFailed, again[0].Status)
	assert.Equal(t, BetPending, again[0].Bets[0].Status)
}
