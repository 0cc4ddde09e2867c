package domain

import "context"

// PolicyRepository is the abstraction for any store persisting Policies and
// their SharedKeys.
type PolicyRepository interface {
	// AddPolicy stores a new Policy. ErrPolicyAlreadyExists if its id is
	// already known — two participants compiling the same descriptor must
	// converge on one record, not duplicate it.
	AddPolicy(ctx context.Context, policy *Policy) error
	GetPolicy(ctx context.Context, policyID string) (*Policy, error)
	ListPolicies(ctx context.Context) ([]*Policy, error)
	DeletePolicy(ctx context.Context, policyID string) error

	// AddSharedKey stores policy_id's SharedKey. Write-once: returns an
	// error if a SharedKey for this policy_id already exists.
	AddSharedKey(ctx context.Context, key *SharedKey) error
	GetSharedKey(ctx context.Context, policyID string) (*SharedKey, error)

	// GetNotificationChannel returns the channel of Notifications the
	// projection publishes as policies and their scoped state change.
	GetNotificationChannel() chan Notification
}
