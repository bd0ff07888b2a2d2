package contracts

import "context"

// TableSource loads one named table as a relation
type TableSource interface {
	Name() string
	Load(ctx context.Context, table string) (*Relation, error)
}

// SnapshotRepository persists validation run summaries
type SnapshotRepository interface {
	Save(ctx context.Context, snapshot *QualitySnapshot) error
	List(ctx context.Context, limit int) ([]*QualitySnapshot, error)
}
