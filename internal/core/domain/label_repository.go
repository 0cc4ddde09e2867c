package domain

import "context"

// LabelRepository persists policy-scoped Labels.
type LabelRepository interface {
	UpsertLabel(ctx context.Context, label *Label) error
	GetLabel(ctx context.Context, labelID string) (*Label, error)
	ListLabelsByPolicy(ctx context.Context, policyID string) ([]*Label, error)
	DeleteLabel(ctx context.Context, labelID string) error
}
