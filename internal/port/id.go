package port

import "context"

// IDGenerator allocates globally unique, strictly increasing identifiers per
// business key. Values survive process restarts.
type IDGenerator interface {
	NextID(ctx context.Context, businessKey string) (int64, error)
}
