package pubsub

import (
	"context"
	"encoding/json"

	"github.com/ritzau/kpi-graph/pkg/model"
)

// Topics published by the KPI engine
const (
	TopicKpiEdges    = "kpi_edges"    // One event per edge mutation
	TopicStoreStatus = "store_status" // Seed loading and reload progress
)

// Event types on TopicKpiEdges
const (
	EventEdgeInserted  = "edge_inserted"
	EventEdgeUpdated   = "edge_updated"
	EventEdgeRemoved   = "edge_removed"
	EventEdgesReloaded = "edges_reloaded"
)

// Event represents a pub/sub event
type Event struct {
	Topic   string          `json:"topic"`
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data"`
	Version int             `json:"version"` // Per-topic, increases by one per publish
}

// Subscription represents a client subscription to a topic
type Subscription interface {
	// Topic returns the subscription topic
	Topic() string

	// Events returns a channel for receiving events. It is closed when the
	// subscription or the publisher closes.
	Events() <-chan Event

	// Close closes the subscription
	Close() error
}

// Publisher manages pub/sub subscriptions and event publishing
type Publisher interface {
	// Subscribe creates a new subscription to a topic
	// Context cancellation will close the subscription
	Subscribe(ctx context.Context, topic string) (Subscription, error)

	// Publish sends an event to all subscribers of a topic
	Publish(topic string, eventType string, data interface{}) error

	// Close shuts down the publisher and all subscriptions
	Close() error
}

// EdgeChange is the payload of TopicKpiEdges events
type EdgeChange struct {
	EdgeID    string         `json:"edgeId,omitempty"`
	Edge      *model.KpiEdge `json:"edge,omitempty"` // Nil for removals and reloads
	EdgeCount int            `json:"edgeCount"`      // Store size after the change
}

// StoreStatus is the payload of TopicStoreStatus events
type StoreStatus struct {
	State   string `json:"state"`   // loading, ready, reload_failed
	Message string `json:"message"` // Human-readable status message
	Source  string `json:"source,omitempty"`
}
