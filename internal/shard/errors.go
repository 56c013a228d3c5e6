package shard

import (
	"errors"
	"fmt"
)

// ErrPolicyViolation is matched by every *ViolationError. It indicates a
// defect: a partition dropped or duplicated a node.
var ErrPolicyViolation = errors.New("shard policy violation")

// ViolationError names the node that broke the disjoint-union invariant.
// Count is the number of shards that hold it.
type ViolationError struct {
	Policy string
	NodeID string
	Count  int
	Reason string
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("%v (%s): node %s in %d shards: %s", ErrPolicyViolation, e.Policy, e.NodeID, e.Count, e.Reason)
}

func (e *ViolationError) Unwrap() error { return ErrPolicyViolation }
