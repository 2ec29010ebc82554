package shared

import "time"

// LifecycleState enumerates the soft-delete lifecycle of an entity.
type LifecycleState string

const (
	LifecycleActive  LifecycleState = "ACTIVE"
	LifecycleDeleted LifecycleState = "DELETED"
)

// Lifecycle embeds an explicit soft-delete state in an entity instead of an
// ad hoc nullable timestamp column interpreted by query modifiers.
type Lifecycle struct {
	State     LifecycleState
	DeletedAt *time.Time
}

// ActiveLifecycle returns the lifecycle of a live entity.
func ActiveLifecycle() Lifecycle {
	return Lifecycle{State: LifecycleActive}
}

// DeletedLifecycle returns the lifecycle of a soft-deleted entity.
func DeletedLifecycle(at time.Time) Lifecycle {
	return Lifecycle{State: LifecycleDeleted, DeletedAt: &at}
}

// Deleted reports whether the entity is soft-deleted.
func (l Lifecycle) Deleted() bool {
	return l.State == LifecycleDeleted
}
