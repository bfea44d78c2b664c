package audit

import (
	"encoding/json"
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	// Authorization events
	EventTypeGrantCreate      EventType = "authz.grant_create"
	EventTypeGrantRevoke      EventType = "authz.grant_revoke"
	EventTypePasswordGrant    EventType = "authz.password_grant"
	EventTypeRoleChange       EventType = "authz.role_change"
	EventTypePermissionChange EventType = "authz.permission_change"
	EventTypeProfileActivate  EventType = "authz.profile_activate"

	// Content events
	EventTypeContentCreate     EventType = "content.create"
	EventTypeContentUpdate     EventType = "content.update"
	EventTypeContentDelete     EventType = "content.delete"
	EventTypeContentTransition EventType = "content.transition"
	EventTypeContentRevert     EventType = "content.revert"

	// Commerce events
	EventTypePricingSet    EventType = "commerce.pricing_set"
	EventTypeOrderComplete EventType = "commerce.order_complete"
	EventTypeOrderFail     EventType = "commerce.order_fail"
	EventTypeOrderRefund   EventType = "commerce.order_refund"

	// Sharing events
	EventTypeInviteCreate EventType = "sharing.invite_create"
	EventTypeInviteRedeem EventType = "sharing.invite_redeem"
	EventTypeInviteToggle EventType = "sharing.invite_toggle"
	EventTypeShareCreate  EventType = "sharing.share_create"
	EventTypeShareRevoke  EventType = "sharing.share_revoke"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// ResourceType represents the type of resource being changed
type ResourceType string

const (
	ResourceTypeContent ResourceType = "content"
	ResourceTypeBundle  ResourceType = "bundle"
	ResourceTypeGrant   ResourceType = "grant"
	ResourceTypeProfile ResourceType = "profile"
	ResourceTypePricing ResourceType = "pricing"
	ResourceTypeOrder   ResourceType = "order"
	ResourceTypeInvite  ResourceType = "invite"
	ResourceTypeShare   ResourceType = "share"
)

// AuditEvent represents a single audit log entry
type AuditEvent struct {
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	ActorID      string       `json:"actor_id,omitempty"`
	ResourceType ResourceType `json:"resource_type,omitempty"`
	ResourceID   string       `json:"resource_id,omitempty"`

	Message  string                 `json:"message,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ToJSON converts the audit event to JSON
func (e *AuditEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// NewEvent builds a successful event stamped with the current UTC time
func NewEvent(eventType EventType, actorID string, resourceType ResourceType, resourceID string) *AuditEvent {
	return &AuditEvent{
		Timestamp:    time.Now().UTC(),
		EventType:    eventType,
		Status:       EventStatusSuccess,
		ActorID:      actorID,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Metadata:     make(map[string]interface{}),
	}
}

// With adds a metadata entry and returns the event for chaining
func (e *AuditEvent) With(key string, value interface{}) *AuditEvent {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// WithStatus sets the outcome and returns the event for chaining
func (e *AuditEvent) WithStatus(status EventStatus) *AuditEvent {
	e.Status = status
	return e
}
