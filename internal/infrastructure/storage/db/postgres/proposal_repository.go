package postgresdb

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/btc-vaults/vaultcore/internal/core/domain"
)

type proposalRepository struct {
	pool *pgxpool.Pool
	log  func(format string, a ...interface{})
}

func newProposalRepository(pool *pgxpool.Pool) *proposalRepository {
	return &proposalRepository{pool: pool, log: logFn("proposal repository")}
}

func (r *proposalRepository) AddProposal(ctx context.Context, p *domain.Proposal) error {
	destJSON, err := json.Marshal(p.Destinations)
	if err != nil {
		return err
	}
	utxosJSON, err := json.Marshal(p.UTXOs)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO proposals (
			id, policy_id, kind, description, unsigned_psbt, destinations_json, utxos_json,
			fee_rate_sat_vb, status, created_at, expires_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		p.ID, p.PolicyID, string(p.Kind), p.Description, p.UnsignedPSBT, string(destJSON), string(utxosJSON),
		p.FeeRateSatVb, string(p.Status), p.CreatedAt, p.ExpiresAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrProposalAlreadyExists
		}
		return err
	}
	return nil
}

func (r *proposalRepository) GetProposal(ctx context.Context, proposalID string) (*domain.Proposal, error) {
	row := r.pool.QueryRow(ctx, proposalSelect+`WHERE id = $1`, proposalID)
	p, err := scanProposal(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProposalNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *proposalRepository) ListProposalsByPolicy(ctx context.Context, policyID string) ([]*domain.Proposal, error) {
	rows, err := r.pool.Query(ctx, proposalSelect+`WHERE policy_id = $1`, policyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *proposalRepository) UpdateProposal(
	ctx context.Context, proposalID string, updateFn func(p *domain.Proposal) (*domain.Proposal, error),
) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, proposalSelect+`WHERE id = $1 FOR UPDATE`, proposalID)
	p, err := scanProposal(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrProposalNotFound
		}
		return err
	}
	updated, err := updateFn(p)
	if err != nil {
		return err
	}

	var txid, expiryAt interface{}
	var rawTx []byte
	var broadcastAt interface{}
	if updated.CompletedInfo != nil {
		txid = updated.CompletedInfo.Txid
		rawTx = updated.CompletedInfo.RawTx
		broadcastAt = updated.CompletedInfo.BroadcastAt
	}
	if updated.ExpiresAt != nil {
		expiryAt = *updated.ExpiresAt
	}
	if _, err := tx.Exec(ctx, `
		UPDATE proposals SET status = $1, completed_txid = $2, completed_raw_tx = $3,
		       completed_broadcast_at = $4, expires_at = $5
		WHERE id = $6`,
		string(updated.Status), txid, rawTx, broadcastAt, expiryAt, proposalID,
	); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *proposalRepository) DeleteProposal(ctx context.Context, proposalID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM proposals WHERE id = $1`, proposalID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrProposalNotFound
	}
	_, err = r.pool.Exec(ctx, `DELETE FROM approvals WHERE proposal_id = $1`, proposalID)
	return err
}

func (r *proposalRepository) AddApproval(ctx context.Context, a *domain.Approval) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO approvals (id, proposal_id, signer_pubkey, signed_psbt, created_at)
		VALUES ($1,$2,$3,$4,$5)`,
		a.ID, a.ProposalID, a.SignerPubKey[:], a.SignedPSBT, a.CreatedAt,
	)
	return err
}

func (r *proposalRepository) ListApprovals(ctx context.Context, proposalID string) ([]*domain.Approval, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, proposal_id, signer_pubkey, signed_psbt, created_at
		FROM approvals WHERE proposal_id = $1`, proposalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Approval
	for rows.Next() {
		var a domain.Approval
		var pubkey []byte
		if err := rows.Scan(&a.ID, &a.ProposalID, &pubkey, &a.SignedPSBT, &a.CreatedAt); err != nil {
			return nil, err
		}
		copy(a.SignerPubKey[:], pubkey)
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (r *proposalRepository) FreezeUTXO(ctx context.Context, u *domain.FrozenUTXO) error {
	var existingProposalID string
	err := r.pool.QueryRow(ctx, `SELECT proposal_id FROM frozen_utxos WHERE utxo_hash = $1`, u.UtxoHash).Scan(&existingProposalID)
	if err == nil {
		if existingProposalID != u.ProposalID {
			return domain.ErrUtxoAlreadyFrozen
		}
		_, err := r.pool.Exec(ctx, `UPDATE frozen_utxos SET policy_id = $1, proposal_id = $2 WHERE utxo_hash = $3`,
			u.PolicyID, u.ProposalID, u.UtxoHash)
		return err
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO frozen_utxos (utxo_hash, policy_id, proposal_id) VALUES ($1,$2,$3)`,
		u.UtxoHash, u.PolicyID, u.ProposalID)
	return err
}

func (r *proposalRepository) ReleaseUTXOs(ctx context.Context, proposalID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM frozen_utxos WHERE proposal_id = $1`, proposalID)
	return err
}

func (r *proposalRepository) IsFrozen(ctx context.Context, utxoHash string) (bool, error) {
	var hash string
	err := r.pool.QueryRow(ctx, `SELECT utxo_hash FROM frozen_utxos WHERE utxo_hash = $1`, utxoHash).Scan(&hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *proposalRepository) ListFrozenUTXOs(ctx context.Context, policyID string) ([]*domain.FrozenUTXO, error) {
	rows, err := r.pool.Query(ctx, `SELECT utxo_hash, policy_id, proposal_id FROM frozen_utxos WHERE policy_id = $1`, policyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.FrozenUTXO
	for rows.Next() {
		var u domain.FrozenUTXO
		if err := rows.Scan(&u.UtxoHash, &u.PolicyID, &u.ProposalID); err != nil {
			return nil, err
		}
		out = append(out, &u)
	}
	return out, rows.Err()
}

const proposalSelect = `
	SELECT id, policy_id, kind, description, unsigned_psbt, destinations_json, utxos_json,
	       fee_rate_sat_vb, status, created_at, expires_at, completed_txid, completed_raw_tx, completed_broadcast_at
	FROM proposals `

func scanProposal(r row) (*domain.Proposal, error) {
	var (
		p            domain.Proposal
		kind, status string
		destJSON     string
		utxosJSON    string
		expiresAt    *time.Time
		txid         *string
		rawTx        []byte
		broadcastAt  *time.Time
	)
	if err := r.Scan(
		&p.ID, &p.PolicyID, &kind, &p.Description, &p.UnsignedPSBT, &destJSON, &utxosJSON,
		&p.FeeRateSatVb, &status, &p.CreatedAt, &expiresAt, &txid, &rawTx, &broadcastAt,
	); err != nil {
		return nil, err
	}
	p.Kind = domain.ProposalKind(kind)
	p.Status = domain.ProposalStatus(status)
	p.ExpiresAt = expiresAt
	if err := json.Unmarshal([]byte(destJSON), &p.Destinations); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(utxosJSON), &p.UTXOs); err != nil {
		return nil, err
	}
	if txid != nil {
		p.CompletedInfo = &domain.CompletedProposal{
			ID: p.ID, PolicyID: p.PolicyID, OriginalProposalID: p.ID,
			Txid: *txid, RawTx: rawTx,
		}
		if broadcastAt != nil {
			p.CompletedInfo.BroadcastAt = *broadcastAt
		}
	}
	return &p, nil
}
