package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"attest/internal/domain"
)

// LockoutRepository. Per-account serialization rides on a row-level
// SELECT ... FOR UPDATE NOWAIT: transitions for one account queue behind the
// row lock, accounts never contend with each other, and a writer that would
// block surfaces domain.ErrConflict for the caller to retry with fresh state.

func (db *DB) GetAccount(ctx context.Context, accountID string) (domain.LockoutAccount, error) {
	var acct domain.LockoutAccount
	err := db.Pool.QueryRow(ctx, `
        SELECT account_id, state, days_overdue, version
        FROM lockout_accounts WHERE account_id = $1
    `, accountID).Scan(&acct.AccountID, &acct.State, &acct.DaysOverdue, &acct.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.LockoutAccount{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.LockoutAccount{}, err
	}
	acct.History, err = db.loadHistory(ctx, db.Pool, accountID)
	return acct, err
}

func (db *DB) CreateAccount(ctx context.Context, accountID string, daysOverdue int) (domain.LockoutAccount, error) {
	acct := domain.LockoutAccount{
		AccountID:   accountID,
		State:       domain.BillingActive,
		DaysOverdue: daysOverdue,
	}
	tag, err := db.Pool.Exec(ctx, `
        INSERT INTO lockout_accounts (account_id, days_overdue)
        VALUES ($1, $2)
        ON CONFLICT (account_id) DO NOTHING
    `, accountID, daysOverdue)
	if err != nil {
		return domain.LockoutAccount{}, err
	}
	if tag.RowsAffected() == 0 {
		return domain.LockoutAccount{}, domain.ErrConflict
	}
	return acct, nil
}

func (db *DB) Transition(ctx context.Context, accountID string, fn func(domain.LockoutAccount) (domain.LockoutAccount, error)) (acct domain.LockoutAccount, err error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return acct, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	// Lock the account row for the duration of the transition.
	err = tx.QueryRow(ctx, `
        SELECT account_id, state, days_overdue, version
        FROM lockout_accounts WHERE account_id = $1
        FOR UPDATE NOWAIT
    `, accountID).Scan(&acct.AccountID, &acct.State, &acct.DaysOverdue, &acct.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return acct, domain.ErrNotFound
	}
	if isLockNotAvailable(err) {
		return acct, domain.ErrConflict
	}
	if err != nil {
		return acct, err
	}
	if acct.History, err = db.loadHistory(ctx, tx, accountID); err != nil {
		return acct, err
	}

	before := len(acct.History)
	next, err := fn(acct)
	if err != nil {
		return acct, err
	}

	if _, err = tx.Exec(ctx, `
        UPDATE lockout_accounts SET state=$2, days_overdue=$3, version=$4 WHERE account_id=$1
    `, accountID, next.State, next.DaysOverdue, next.Version); err != nil {
		return acct, err
	}
	// History is append-only: persist only the new tail.
	for _, ev := range next.History[before:] {
		if _, err = tx.Exec(ctx, `
            INSERT INTO lockout_events (id, account_id, ts, action, actor_id, reason, notes)
            VALUES ($1, $2, $3, $4, $5, $6, $7)
        `, ev.ID, accountID, ev.Timestamp, ev.Action, ev.ActorID, ev.Reason, ev.Notes); err != nil {
			return acct, err
		}
	}
	return next, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (db *DB) loadHistory(ctx context.Context, q querier, accountID string) ([]domain.LockoutEvent, error) {
	rows, err := q.Query(ctx, `
        SELECT id, ts, action, actor_id, reason, notes
        FROM lockout_events WHERE account_id = $1
        ORDER BY ts, id
    `, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.LockoutEvent
	for rows.Next() {
		var ev domain.LockoutEvent
		if err := rows.Scan(&ev.ID, &ev.Timestamp, &ev.Action, &ev.ActorID, &ev.Reason, &ev.Notes); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// isLockNotAvailable matches SQLSTATE 55P03, raised by FOR UPDATE NOWAIT when
// another transition holds the row.
func isLockNotAvailable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "55P03"
}
