package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mlaurent/parlay-tracker/internal/tracker-service/dto"
	"github.com/mlaurent/parlay-tracker/internal/tracker-service/engine"
	"github.com/mlaurent/parlay-tracker/internal/tracker-service/odds"
	"github.com/mlaurent/parlay-tracker/internal/tracker-service/ws"
	"github.com/mlaurent/parlay-tracker/pkg/contracts/events"
)

// Publisher publica os eventos de domínio no Kafka. Falha de publicação é
// logada e nunca bloqueia a mutação já aplicada.
type Publisher interface {
	PublishBetSettled(ctx context.Context, e events.BetSettled) error
	PublishSessionClosed(ctx context.Context, e events.SessionClosed) error
}

// Broadcaster entrega snapshots ao canal Pub/Sub consumido pelo hub WS.
type Broadcaster interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Mirror é o espelho remoto de estado (chaves bets/currentSession/sessions).
type Mirror interface {
	SaveSnapshot(ctx context.Context, snap engine.Snapshot) error
	Load(ctx context.Context) (bets []engine.Bet, mise float64, current *engine.Session, sessions []engine.Session, err error)
}

// Server expõe a API REST do tracker e o endpoint WebSocket do board.
// Toda mutação segue o mesmo ciclo: engine → espelho Redis → broadcast.
type Server struct {
	log     *zap.Logger
	eng     *engine.Engine
	mirror  Mirror
	publ    Publisher
	bcast   Broadcaster
	channel string
	hub     *ws.Hub
}

func NewServer(log *zap.Logger, eng *engine.Engine, mirror Mirror, publ Publisher, bcast Broadcaster, channel string, hub *ws.Hub) *Server {
	return &Server{log: log, eng: eng, mirror: mirror, publ: publ, bcast: bcast, channel: channel, hub: hub}
}

// Router retorna o roteador HTTP com os endpoints REST e o WS do board
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Post("/v1/sessions", s.startSession)           // Inicia sessão (confirm p/ sobrescrever)
	r.Get("/v1/sessions", s.listSessions)            // Histórico de sessões fechadas
	r.Get("/v1/sessions/current", s.getCurrent)      // Sessão ativa
	r.Post("/v1/sessions/current/end", s.endSession) // Encerramento explícito

	r.Post("/v1/bets", s.createBet)             // Registra aposta pending
	r.Get("/v1/bets", s.listBets)               // Lista de trabalho
	r.Post("/v1/bets/{id}/settle", s.settleBet) // Liquida (won/lost)
	r.Delete("/v1/bets/{id}", s.deleteBet)      // Correção (exige confirm)

	r.Get("/v1/projections", s.projections) // Curva hipotética de 10 degraus
	r.Get("/v1/stats", s.stats)             // Contadores won/lost + progressão
	r.Put("/v1/stake", s.setStake)          // Mise padrão
	r.Post("/v1/sync", s.resync)            // Re-hidrata do espelho

	r.Get("/ws", s.hub.HandleWS)

	return r
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr mapeia a taxonomia de erros do core para status HTTP
func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, odds.ErrValidation):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.Is(err, engine.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, engine.ErrInvalidState):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

// afterMutation espelha o snapshot no Redis e propaga ao board.
// Retorna "ok" ou "error" para o campo sync da resposta.
func (s *Server) afterMutation(ctx context.Context) string {
	snap := s.eng.Snapshot()

	sync := "ok"
	if err := s.mirror.SaveSnapshot(ctx, snap); err != nil {
		s.log.Warn("mirror save", zap.Error(err))
		sync = "error"
	}

	upd, err := json.Marshal(ws.BoardUpdate{Channel: "board", Payload: snap})
	if err == nil {
		if err := s.bcast.Publish(ctx, s.channel, upd); err != nil {
			s.log.Warn("board publish", zap.Error(err))
		}
	}

	return sync
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	var req dto.StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json"})
		return
	}

	var confirm engine.ConfirmFunc
	if req.Confirm {
		confirm = func(string) bool { return true }
	}

	hadCurrent := s.eng.CurrentSession()

	sess, err := s.eng.StartSession(req.InitialStake, confirm)
	if err != nil {
		writeErr(w, err)
		return
	}

	// sobrescrita confirmada: a sessão anterior foi fechada como abandoned
	if hadCurrent != nil {
		s.publishClosed(r.Context(), s.lastClosed())
	}

	sync := s.afterMutation(r.Context())
	writeJSON(w, http.StatusCreated, dto.SessionResponse{Session: *sess, Sync: sync})
}

func (s *Server) getCurrent(w http.ResponseWriter, r *http.Request) {
	sess := s.eng.CurrentSession()
	if sess == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no session in progress"})
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.History())
}

func (s *Server) endSession(w http.ResponseWriter, r *http.Request) {
	var req dto.EndSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json"})
		return
	}

	sess, err := s.eng.EndSession(req.Status)
	if err != nil {
		writeErr(w, err)
		return
	}

	s.publishClosed(r.Context(), sess)

	sync := s.afterMutation(r.Context())
	writeJSON(w, http.StatusOK, dto.SessionResponse{Session: *sess, Sync: sync})
}

func (s *Server) createBet(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json"})
		return
	}

	legs := []odds.Leg{{Description: req.Match1.Description, Odd: req.Match1.Odd}}
	if req.Match2 != nil && (req.Match2.Description != "" || req.Match2.Odd != 0) {
		legs = append(legs, odds.Leg{Description: req.Match2.Description, Odd: req.Match2.Odd})
	}

	bet, err := s.eng.RecordBet(legs)
	if err != nil {
		writeErr(w, err)
		return
	}

	sync := s.afterMutation(r.Context())
	writeJSON(w, http.StatusCreated, dto.BetResponse{Bet: *bet, Sync: sync})
}

func (s *Server) listBets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.Snapshot().Bets)
}

func (s *Server) settleBet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req dto.SettleBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json"})
		return
	}

	res, err := s.eng.SettleBet(id, req.Outcome)
	if err != nil {
		writeErr(w, err)
		return
	}

	if err := s.publ.PublishBetSettled(r.Context(), events.BetSettled{
		BetID:         res.Bet.ID,
		SessionID:     res.Session.ID,
		Outcome:       res.Bet.Status,
		CombinedOdd:   res.Bet.CombinedOdd,
		BankrollAfter: res.Session.CurrentBankroll,
		StepCount:     res.Session.StepCount,
		SessionClosed: res.Closed,
	}); err != nil {
		s.log.Warn("publish bet_settled", zap.Error(err))
	}

	if res.Closed {
		s.publishClosed(r.Context(), &res.Session)
	}

	sync := s.afterMutation(r.Context())
	writeJSON(w, http.StatusOK, dto.SettleBetResponse{
		Bet:           res.Bet,
		Session:       res.Session,
		SessionClosed: res.Closed,
		Sync:          sync,
	})
}

func (s *Server) deleteBet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var confirm engine.ConfirmFunc
	if r.URL.Query().Get("confirm") == "true" {
		confirm = func(string) bool { return true }
	}

	if err := s.eng.DeleteBet(id, confirm); err != nil {
		writeErr(w, err)
		return
	}

	sync := s.afterMutation(r.Context())
	writeJSON(w, http.StatusOK, dto.DeleteBetResponse{Deleted: true, Sync: sync})
}

func (s *Server) projections(w http.ResponseWriter, r *http.Request) {
	base := 0.0
	if q := r.URL.Query().Get("base"); q != "" {
		f, err := strconv.ParseFloat(q, 64)
		if err != nil || f <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid base"})
			return
		}
		base = f
	}

	proj := s.eng.ProjectBankroll(base)
	if base == 0 {
		if sess := s.eng.CurrentSession(); sess != nil {
			base = sess.InitialStake
		} else {
			base = s.eng.DefaultStake()
		}
	}

	writeJSON(w, http.StatusOK, dto.ProjectionsResponse{
		Base:        base,
		Multiplier:  engine.ProjectionMultiplier,
		Projections: proj,
	})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	snap := s.eng.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"won":             snap.Stats.Won,
		"lost":            snap.Stats.Lost,
		"progression_pct": snap.ProgressionPct,
	})
}

func (s *Server) setStake(w http.ResponseWriter, r *http.Request) {
	var req dto.SetStakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json"})
		return
	}

	if err := s.eng.SetDefaultStake(req.Amount); err != nil {
		writeErr(w, err)
		return
	}

	sync := s.afterMutation(r.Context())
	writeJSON(w, http.StatusOK, dto.StakeResponse{Amount: req.Amount, Sync: sync})
}

// resync re-hidrata o engine a partir do espelho, descartando o estado
// em memória em favor do que está persistido.
func (s *Server) resync(w http.ResponseWriter, r *http.Request) {
	bets, mise, current, sessions, err := s.mirror.Load(r.Context())
	if err != nil {
		s.log.Warn("mirror load", zap.Error(err))
		writeJSON(w, http.StatusOK, dto.SyncResponse{Sync: "error"})
		return
	}

	s.eng.Hydrate(bets, current, sessions, mise)
	writeJSON(w, http.StatusOK, dto.SyncResponse{Sync: "ok"})
}

// publishClosed emite o evento session_closed consumido pelo archiver.
func (s *Server) publishClosed(ctx context.Context, sess *engine.Session) {
	if sess == nil || sess.EndedAt == nil {
		return
	}

	ev := events.SessionClosed{
		SessionID:     sess.ID,
		Status:        sess.Status,
		InitialStake:  sess.InitialStake,
		FinalBankroll: sess.CurrentBankroll,
		StepCount:     sess.StepCount,
		StartedAt:     sess.StartedAt,
		EndedAt:       *sess.EndedAt,
	}
	for _, b := range sess.Bets {
		eb := events.SessionBet{
			BetID:       b.ID,
			CombinedOdd: b.CombinedOdd,
			Status:      b.Status,
			CreatedAt:   b.CreatedAt,
			SettledAt:   b.SettledAt,
		}
		for _, l := range b.Legs {
			eb.Legs = append(eb.Legs, events.SessionBetLeg{Description: l.Description, Odd: l.Odd})
		}
		ev.Bets = append(ev.Bets, eb)
	}

	if err := s.publ.PublishSessionClosed(ctx, ev); err != nil {
		s.log.Warn("publish session_closed", zap.Error(err))
	}
}

// lastClosed retorna a sessão fechada mais recente do histórico (usada
// após uma sobrescrita confirmada de sessão ativa).
func (s *Server) lastClosed() *engine.Session {
	hist := s.eng.History()
	if len(hist) == 0 {
		return nil
	}
	last := hist[len(hist)-1]
	return &last
}
