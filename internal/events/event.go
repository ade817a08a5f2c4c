// Package events implements the process-local change notification bus.
//
// Every successful mutation publishes one typed event on a logical
// channel; connected sessions subscribe to all channels and use received
// events only to trigger re-reads, never to mutate local state directly.
package events

import "encoding/json"

// Channel is a named topic on the bus.
type Channel string

const (
	ChannelServers     Channel = "servers"
	ChannelDomains     Channel = "domains"
	ChannelAssignments Channel = "assignments"
	ChannelLocks       Channel = "locks"
	ChannelGroups      Channel = "server_groups"
)

// Channels lists every topic a session is subscribed to on connect.
func Channels() []Channel {
	return []Channel{ChannelServers, ChannelDomains, ChannelAssignments, ChannelLocks, ChannelGroups}
}

// Action describes what happened to the resource.
type Action string

const (
	ActionCreated      Action = "created"
	ActionUpdated      Action = "updated"
	ActionDeleted      Action = "deleted"
	ActionBulkCreated  Action = "bulk_created"
	ActionBulkDeleted  Action = "bulk_deleted"
	ActionLockAcquired Action = "lock_acquired"
	ActionLockReleased Action = "lock_released"
)

// Event is one change notification.
type Event struct {
	Channel Channel                `json:"channel"`
	Action  Action                 `json:"action"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// Envelope is the wire shape pushed to session channels:
// {"channel": ..., "data": {"action": ..., ...payload fields}}.
func (e Event) Envelope() ([]byte, error) {
	data := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		data[k] = v
	}
	data["action"] = string(e.Action)
	return json.Marshal(map[string]interface{}{
		"channel": string(e.Channel),
		"data":    data,
	})
}
