package postgresdb

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/btc-vaults/vaultcore/internal/core/domain"
)

type signerRepository struct {
	pool *pgxpool.Pool
	log  func(format string, a ...interface{})
}

func newSignerRepository(pool *pgxpool.Pool) *signerRepository {
	return &signerRepository{pool: pool, log: logFn("signer repository")}
}

func (r *signerRepository) AddSigner(ctx context.Context, s *domain.Signer) error {
	descJSON, err := marshalDescriptors(s.DescriptorsByPurp)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO signers (id, fingerprint, type, name, device_type, descriptors_json, network, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO UPDATE SET
			fingerprint = EXCLUDED.fingerprint, type = EXCLUDED.type, name = EXCLUDED.name,
			device_type = EXCLUDED.device_type, descriptors_json = EXCLUDED.descriptors_json,
			network = EXCLUDED.network`,
		s.ID, s.Fingerprint[:], string(s.Type), s.Name, s.DeviceType, descJSON, s.Network, s.CreatedAt,
	)
	return err
}

func (r *signerRepository) GetSigner(ctx context.Context, signerID string) (*domain.Signer, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, fingerprint, type, name, device_type, descriptors_json, network, created_at
		FROM signers WHERE id = $1`, signerID)
	s, err := scanSigner(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSignerNotFound
		}
		return nil, err
	}
	return s, nil
}

func (r *signerRepository) ListSigners(ctx context.Context) ([]*domain.Signer, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, fingerprint, type, name, device_type, descriptors_json, network, created_at FROM signers`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Signer
	for rows.Next() {
		s, err := scanSigner(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *signerRepository) DeleteSigner(ctx context.Context, signerID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM signers WHERE id = $1`, signerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSignerNotFound
	}
	return nil
}

func (r *signerRepository) AddSharedSignerOffer(ctx context.Context, offer *domain.SharedSigner) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO shared_signer_offers (offer_id, signer_id, owner, recipient, accepted, revoked, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (offer_id) DO UPDATE SET
			signer_id = EXCLUDED.signer_id, owner = EXCLUDED.owner, recipient = EXCLUDED.recipient,
			accepted = EXCLUDED.accepted, revoked = EXCLUDED.revoked`,
		offer.OfferID, offer.SignerID, offer.Owner[:], offer.Recipient[:], offer.Accepted, offer.Revoked, offer.CreatedAt,
	)
	return err
}

func (r *signerRepository) GetSharedSignerOffer(ctx context.Context, offerID string) (*domain.SharedSigner, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT offer_id, signer_id, owner, recipient, accepted, revoked, created_at
		FROM shared_signer_offers WHERE offer_id = $1`, offerID)
	o, err := scanSharedSigner(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSharedSignerNotFound
		}
		return nil, err
	}
	return o, nil
}

func (r *signerRepository) ListSharedSignerOffers(ctx context.Context) ([]*domain.SharedSigner, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT offer_id, signer_id, owner, recipient, accepted, revoked, created_at FROM shared_signer_offers`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.SharedSigner
	for rows.Next() {
		o, err := scanSharedSigner(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *signerRepository) UpdateSharedSignerOffer(
	ctx context.Context, offerID string, updateFn func(s *domain.SharedSigner) (*domain.SharedSigner, error),
) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		SELECT offer_id, signer_id, owner, recipient, accepted, revoked, created_at
		FROM shared_signer_offers WHERE offer_id = $1 FOR UPDATE`, offerID)
	o, err := scanSharedSigner(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrSharedSignerNotFound
		}
		return err
	}
	updated, err := updateFn(o)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE shared_signer_offers SET accepted = $1, revoked = $2 WHERE offer_id = $3`,
		updated.Accepted, updated.Revoked, offerID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *signerRepository) AddKeyAgentProfile(ctx context.Context, p *domain.KeyAgentProfile) error {
	classesJSON, err := json.Marshal(p.SupportedClass)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO key_agent_profiles (pubkey, name, fee_per_sig_sats, fee_annual_sats, fee_basis_points, supported_class_json, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (pubkey) DO UPDATE SET
			name = EXCLUDED.name, fee_per_sig_sats = EXCLUDED.fee_per_sig_sats,
			fee_annual_sats = EXCLUDED.fee_annual_sats, fee_basis_points = EXCLUDED.fee_basis_points,
			supported_class_json = EXCLUDED.supported_class_json`,
		p.PubKey[:], p.Name, p.FeePerSigSats, p.FeeAnnualSats, p.FeeBasisPoints, string(classesJSON), p.CreatedAt,
	)
	return err
}

func (r *signerRepository) ListKeyAgentProfiles(ctx context.Context) ([]*domain.KeyAgentProfile, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT pubkey, name, fee_per_sig_sats, fee_annual_sats, fee_basis_points, supported_class_json, created_at
		FROM key_agent_profiles`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.KeyAgentProfile
	for rows.Next() {
		var p domain.KeyAgentProfile
		var pubkey []byte
		var classesJSON string
		if err := rows.Scan(&pubkey, &p.Name, &p.FeePerSigSats, &p.FeeAnnualSats, &p.FeeBasisPoints, &classesJSON, &p.CreatedAt); err != nil {
			return nil, err
		}
		copy(p.PubKey[:], pubkey)
		if err := json.Unmarshal([]byte(classesJSON), &p.SupportedClass); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func scanSigner(r row) (*domain.Signer, error) {
	var (
		s          domain.Signer
		typ        string
		fingerprint []byte
		descJSON   string
	)
	if err := r.Scan(&s.ID, &fingerprint, &typ, &s.Name, &s.DeviceType, &descJSON, &s.Network, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.Type = domain.SignerType(typ)
	copy(s.Fingerprint[:], fingerprint)
	descriptors, err := unmarshalDescriptors(descJSON)
	if err != nil {
		return nil, err
	}
	s.DescriptorsByPurp = descriptors
	return &s, nil
}

func scanSharedSigner(r row) (*domain.SharedSigner, error) {
	var (
		o                  domain.SharedSigner
		owner, recipient   []byte
	)
	if err := r.Scan(&o.OfferID, &o.SignerID, &owner, &recipient, &o.Accepted, &o.Revoked, &o.CreatedAt); err != nil {
		return nil, err
	}
	copy(o.Owner[:], owner)
	copy(o.Recipient[:], recipient)
	return &o, nil
}

// marshalDescriptors/unmarshalDescriptors round-trip a Signer's
// per-purpose descriptor map through JSON, which requires string keys —
// domain.Purpose is a uint32, so the wire form keys by its decimal string.
func marshalDescriptors(m map[domain.Purpose]string) (string, error) {
	strKeyed := make(map[string]string, len(m))
	for purpose, desc := range m {
		strKeyed[strconv.FormatUint(uint64(purpose), 10)] = desc
	}
	b, err := json.Marshal(strKeyed)
	return string(b), err
}

func unmarshalDescriptors(raw string) (map[domain.Purpose]string, error) {
	var strKeyed map[string]string
	if err := json.Unmarshal([]byte(raw), &strKeyed); err != nil {
		return nil, err
	}
	out := make(map[domain.Purpose]string, len(strKeyed))
	for k, v := range strKeyed {
		n, err := strconv.ParseUint(k, 10, 32)
		if err != nil {
			return nil, err
		}
		out[domain.Purpose(n)] = v
	}
	return out, nil
}
