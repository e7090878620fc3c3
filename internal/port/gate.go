package port

import "context"

type GateResult int

const (
	GateOK GateResult = iota
	GateOutOfStock
	GateDuplicate
)

func (r GateResult) String() string {
	switch r {
	case GateOK:
		return "ok"
	case GateOutOfStock:
		return "out_of_stock"
	case GateDuplicate:
		return "duplicate"
	}
	return "unknown"
}

// EligibilityGate decides, in a single atomic round trip, whether a user may
// order a voucher: it checks for a duplicate order, checks and decrements the
// cached stock counter, and enqueues the order request for the worker.
type EligibilityGate interface {
	CheckAndReserve(ctx context.Context, voucherID, userID, orderID int64) (GateResult, error)
}
