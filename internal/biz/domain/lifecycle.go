package domain

import "time"

// LifecycleType names a runtime lifecycle event
type LifecycleType string

const (
	LifecycleProjectCreated       LifecycleType = "project.created"
	LifecycleProjectDeleted       LifecycleType = "project.deleted"
	LifecycleProjectCompiled      LifecycleType = "project.compiled"
	LifecycleProjectCompileFailed LifecycleType = "project.compile_failed"
	LifecycleProjectDestroyed     LifecycleType = "project.destroyed"
	LifecycleNotificationPosted   LifecycleType = "notification.posted"
	LifecycleNotificationDismiss  LifecycleType = "notification.dismissed"
)

// LifecycleEvent is published on the lifecycle bus for observers
type LifecycleEvent struct {
	ID          string        `json:"id"`
	Type        LifecycleType `json:"type"`
	Time        time.Time     `json:"time"`
	ProjectID   string        `json:"project_id,omitempty"`
	ProjectName string        `json:"project_name,omitempty"`
	Error       string        `json:"error,omitempty"`
	Payload     any           `json:"payload,omitempty"`
}
