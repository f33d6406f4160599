package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mafia-engine/mafia-engine/internal/domain/game"
)

// GameRepository implements game.Repository. Save replaces the whole
// session atomically: one upsert on games plus delete-and-insert of the
// player and pending-action child rows in a single transaction, so a
// reader never observes a half-written session.
type GameRepository struct {
	pool *pgxpool.Pool
}

func NewGameRepository(pool *pgxpool.Pool) *GameRepository {
	return &GameRepository{pool: pool}
}

func (r *GameRepository) Save(ctx context.Context, s *game.Session) error {
	rolesConfig, err := json.Marshal(s.RolesConfig)
	if err != nil {
		return fmt.Errorf("encode roles config: %w", err)
	}
	ledger, err := json.Marshal(s.Ledger)
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	mafiaVotes, err := json.Marshal(s.MafiaVotes)
	if err != nil {
		return fmt.Errorf("encode mafia votes: %w", err)
	}
	voteOrder, err := json.Marshal(s.MafiaVoteOrder)
	if err != nil {
		return fmt.Errorf("encode mafia vote order: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO games
		(game_id, host_id, phase, roles_config, night_seconds, day_seconds, reminder_seconds,
		 phase_deadline, ledger, mafia_votes, mafia_vote_order, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (game_id) DO UPDATE SET
			host_id=EXCLUDED.host_id, phase=EXCLUDED.phase, roles_config=EXCLUDED.roles_config,
			night_seconds=EXCLUDED.night_seconds, day_seconds=EXCLUDED.day_seconds,
			reminder_seconds=EXCLUDED.reminder_seconds, phase_deadline=EXCLUDED.phase_deadline,
			ledger=EXCLUDED.ledger, mafia_votes=EXCLUDED.mafia_votes,
			mafia_vote_order=EXCLUDED.mafia_vote_order, updated_at=EXCLUDED.updated_at
	`, s.ID, s.HostID, s.Phase, rolesConfig, s.NightSeconds, s.DaySeconds, s.ReminderSeconds,
		s.PhaseDeadline, ledger, mafiaVotes, voteOrder, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM players WHERE game_id=$1`, s.ID); err != nil {
		return err
	}
	for _, p := range s.Players {
		_, err := tx.Exec(ctx, `
			INSERT INTO players (game_id, player_id, name, role, alive, blocked, silenced, dm_reachable)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, s.ID, p.ID, p.Name, p.Role, p.Alive, p.Blocked, p.Silenced, p.DMReachable)
		if err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM pending_actions WHERE game_id=$1`, s.ID); err != nil {
		return err
	}
	for _, pa := range s.Pending {
		confirmations, err := json.Marshal(pa.Confirmations)
		if err != nil {
			return fmt.Errorf("encode confirmations: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO pending_actions (action_key, game_id, kind, actor_id, target_id, confirmations, created_at, expires_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, pa.Key, s.ID, pa.Kind, pa.Actor, pa.Target, confirmations, pa.CreatedAt, pa.ExpiresAt)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *GameRepository) GetByID(ctx context.Context, id int64) (*game.Session, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT game_id, host_id, phase, roles_config, night_seconds, day_seconds, reminder_seconds,
		       phase_deadline, ledger, mafia_votes, mafia_vote_order, created_at, updated_at
		FROM games WHERE game_id=$1
	`, id)
	s, err := scanGame(row)
	if err != nil || s == nil {
		return s, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT player_id, name, role, alive, blocked, silenced, dm_reachable
		FROM players WHERE game_id=$1
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var p game.Player
		if err := rows.Scan(&p.ID, &p.Name, &p.Role, &p.Alive, &p.Blocked, &p.Silenced, &p.DMReachable); err != nil {
			return nil, err
		}
		s.Players[p.ID] = &p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	paRows, err := r.pool.Query(ctx, `
		SELECT action_key, kind, actor_id, target_id, confirmations, created_at, expires_at
		FROM pending_actions WHERE game_id=$1
	`, id)
	if err != nil {
		return nil, err
	}
	defer paRows.Close()
	for paRows.Next() {
		var pa game.PendingAction
		var confirmations json.RawMessage
		if err := paRows.Scan(&pa.Key, &pa.Kind, &pa.Actor, &pa.Target, &confirmations, &pa.CreatedAt, &pa.ExpiresAt); err != nil {
			return nil, err
		}
		pa.SessionID = id
		if len(confirmations) > 0 {
			if err := json.Unmarshal(confirmations, &pa.Confirmations); err != nil {
				return nil, fmt.Errorf("decode confirmations: %w", err)
			}
		}
		s.Pending[pa.Key] = &pa
	}
	if err := paRows.Err(); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *GameRepository) ListIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT game_id FROM games ORDER BY game_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *GameRepository) Delete(ctx context.Context, id int64) error {
	// child rows go with it via ON DELETE CASCADE
	_, err := r.pool.Exec(ctx, `DELETE FROM games WHERE game_id=$1`, id)
	return err
}

func scanGame(row pgx.Row) (*game.Session, error) {
	s := &game.Session{
		Players: make(map[int64]*game.Player),
		Ledger:  make(map[game.LedgerKind][]game.LedgerEntry),
		Pending: make(map[string]*game.PendingAction),
		Jobs:    make(map[string]string),
	}
	var rolesConfig, ledger, mafiaVotes, voteOrder json.RawMessage
	if err := row.Scan(&s.ID, &s.HostID, &s.Phase, &rolesConfig, &s.NightSeconds, &s.DaySeconds,
		&s.ReminderSeconds, &s.PhaseDeadline, &ledger, &mafiaVotes, &voteOrder, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if len(rolesConfig) > 0 {
		if err := json.Unmarshal(rolesConfig, &s.RolesConfig); err != nil {
			return nil, fmt.Errorf("decode roles config: %w", err)
		}
	}
	if s.RolesConfig == nil {
		s.RolesConfig = game.DefaultRolesConfig()
	}
	if len(ledger) > 0 {
		if err := json.Unmarshal(ledger, &s.Ledger); err != nil {
			return nil, fmt.Errorf("decode ledger: %w", err)
		}
	}
	if s.Ledger == nil {
		s.Ledger = make(map[game.LedgerKind][]game.LedgerEntry)
	}
	if len(mafiaVotes) > 0 {
		if err := json.Unmarshal(mafiaVotes, &s.MafiaVotes); err != nil {
			return nil, fmt.Errorf("decode mafia votes: %w", err)
		}
	}
	if s.MafiaVotes == nil {
		s.MafiaVotes = make(map[int64]int64)
	}
	if len(voteOrder) > 0 {
		if err := json.Unmarshal(voteOrder, &s.MafiaVoteOrder); err != nil {
			return nil, fmt.Errorf("decode mafia vote order: %w", err)
		}
	}
	return s, nil
}
