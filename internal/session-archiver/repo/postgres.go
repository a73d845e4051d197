package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/mlaurent/parlay-tracker/internal/session-archiver/dto"
)

// Postgres arquiva sessões fechadas e suas apostas congeladas.
// Esquema:
//
//	sessions(id, status, initial_stake, final_bankroll, step_count,
//	         started_at, ended_at, archived_at)
//	session_bets(bet_id, session_id, legs jsonb, combined_odd, status,
//	             created_at, settled_at)
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// Archive insere a sessão e suas apostas numa transação.
// Idempotente por session id: reprocessar o mesmo evento não duplica.
func (p *Postgres) Archive(ctx context.Context, ev *dto.SessionClosed) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (id, status, initial_stake, final_bankroll, step_count, started_at, ended_at, archived_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,NOW())
		ON CONFLICT (id) DO NOTHING`,
		ev.SessionID, ev.Status, ev.InitialStake, ev.FinalBankroll, ev.StepCount, ev.StartedAt, ev.EndedAt,
	)
	if err != nil {
		return err
	}

	// Sessão já arquivada: nada a fazer
	if n, _ := res.RowsAffected(); n == 0 {
		return tx.Commit()
	}

	for _, b := range ev.Bets {
		legs, err := json.Marshal(b.Legs)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO session_bets (bet_id, session_id, legs, combined_odd, status, created_at, settled_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			b.BetID, ev.SessionID, legs, b.CombinedOdd, b.Status, b.CreatedAt, b.SettledAt,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// CountArchived retorna o total de sessões arquivadas (healthcheck/ops).
func (p *Postgres) CountArchived(ctx context.Context) (int64, error) {
	var n int64
	err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&n)
	return n, err
}
