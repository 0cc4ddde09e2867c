package postgresdb

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/btc-vaults/vaultcore/internal/core/domain"
)

const uniqueViolation = "23505"

type policyRepository struct {
	pool          *pgxpool.Pool
	notifications chan domain.Notification

	log func(format string, a ...interface{})
}

func newPolicyRepository(pool *pgxpool.Pool) *policyRepository {
	return &policyRepository{
		pool:          pool,
		notifications: make(chan domain.Notification, 256),
		log:           logFn("policy repository"),
	}
}

func (r *policyRepository) AddPolicy(ctx context.Context, p *domain.Policy) error {
	keysJSON, err := json.Marshal(p.PublicKeys)
	if err != nil {
		return err
	}
	var expirySeconds *int64
	if p.ProposalExpiry != nil {
		s := int64(p.ProposalExpiry.Seconds())
		expirySeconds = &s
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO policies (
			id, name, description, descriptor, network, template_class,
			uses_key_agent, absolute_lock, proposal_expiry_seconds, public_keys_json, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		p.ID, p.Name, p.Description, p.Descriptor, p.Network, string(p.TemplateClass),
		p.UsesKeyAgent, p.AbsoluteLock, expirySeconds, string(keysJSON), p.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrPolicyAlreadyExists
		}
		return err
	}
	r.publish(domain.Notification{Type: domain.PolicyAdded, PolicyID: p.ID})
	return nil
}

func (r *policyRepository) GetPolicy(ctx context.Context, policyID string) (*domain.Policy, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, description, descriptor, network, template_class,
		       uses_key_agent, absolute_lock, proposal_expiry_seconds, public_keys_json, created_at
		FROM policies WHERE id = $1`, policyID)
	p, err := scanPolicy(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPolicyNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *policyRepository) ListPolicies(ctx context.Context) ([]*domain.Policy, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, description, descriptor, network, template_class,
		       uses_key_agent, absolute_lock, proposal_expiry_seconds, public_keys_json, created_at
		FROM policies`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *policyRepository) DeletePolicy(ctx context.Context, policyID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM policies WHERE id = $1`, policyID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPolicyNotFound
	}
	return nil
}

func (r *policyRepository) AddSharedKey(ctx context.Context, key *domain.SharedKey) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO shared_keys (policy_id, key) VALUES ($1, $2)`,
		key.PolicyID, key.Key[:])
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrSharedKeyAlreadyExists
		}
		return err
	}
	return nil
}

func (r *policyRepository) GetSharedKey(ctx context.Context, policyID string) (*domain.SharedKey, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx, `SELECT key FROM shared_keys WHERE policy_id = $1`, policyID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSharedKeyNotFound
		}
		return nil, err
	}
	var key [32]byte
	copy(key[:], raw)
	return &domain.SharedKey{PolicyID: policyID, Key: key}, nil
}

func (r *policyRepository) GetNotificationChannel() chan domain.Notification {
	return r.notifications
}

func (r *policyRepository) publish(n domain.Notification) {
	select {
	case r.notifications <- n:
	default:
		r.log("dropped %s notification, channel full", n.Type)
	}
}

// row is satisfied by both pgx.Row (QueryRow) and pgx.Rows (Query, via
// rows.Next()+Scan), letting GetPolicy and ListPolicies share one scanner.
type row interface {
	Scan(dest ...interface{}) error
}

func scanPolicy(r row) (*domain.Policy, error) {
	var (
		p             domain.Policy
		class         string
		expirySeconds *int64
		keysJSON      string
		createdAt     time.Time
	)
	if err := r.Scan(
		&p.ID, &p.Name, &p.Description, &p.Descriptor, &p.Network, &class,
		&p.UsesKeyAgent, &p.AbsoluteLock, &expirySeconds, &keysJSON, &createdAt,
	); err != nil {
		return nil, err
	}
	p.TemplateClass = domain.TemplateClass(class)
	p.CreatedAt = createdAt
	if expirySeconds != nil {
		d := time.Duration(*expirySeconds) * time.Second
		p.ProposalExpiry = &d
	}
	if err := json.Unmarshal([]byte(keysJSON), &p.PublicKeys); err != nil {
		return nil, err
	}
	return &p, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
