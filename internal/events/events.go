// Package events is the realtime change feed. Services publish row changes;
// websocket clients subscribe with a table and row filter.
//
// Delivery is at-least-once and best effort. Subscribers must dedupe by ID and
// refetch after reconnecting.
package events

import (
	"context"
	"encoding/json"
	"slices"
	"time"
)

type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

const (
	TableProfiles      = "profiles"
	TableMatches       = "matches"
	TableMessages      = "messages"
	TableNotifications = "notifications"
	TableReports       = "reports"
)

// Event is one row change.
type Event struct {
	Table string `json:"table"`
	Type  Op     `json:"type"`
	ID    string `json:"id"`
	// MatchID scopes message events to a conversation.
	MatchID string `json:"match_id,omitempty"`
	// Participants limits delivery to these users. Empty means admins only.
	Participants []string        `json:"participants,omitempty"`
	Row          json.RawMessage `json:"row,omitempty"`
	At           time.Time       `json:"at"`
}

// New builds an event, encoding row as the payload.
func New(table string, op Op, id string, row any, participants ...string) Event {
	e := Event{
		Table:        table,
		Type:         op,
		ID:           id,
		Participants: participants,
		At:           time.Now().UTC(),
	}
	if row != nil {
		if b, err := json.Marshal(row); err == nil {
			e.Row = b
		}
	}
	return e
}

// ForMatch scopes e to a conversation.
func (e Event) ForMatch(matchID string) Event {
	e.MatchID = matchID
	return e
}

// Filter selects the events a subscriber receives.
type Filter struct {
	Table   string // empty: every table
	MatchID string // empty: every match
	UserID  string // empty: no participant restriction (admin feeds)
}

func (f Filter) Matches(e Event) bool {
	if f.Table != "" && f.Table != e.Table {
		return false
	}
	if f.MatchID != "" && f.MatchID != e.MatchID {
		return false
	}
	if f.UserID != "" && !slices.Contains(e.Participants, f.UserID) {
		return false
	}
	return true
}

// Bus is implemented by the in-memory and Redis backends.
type Bus interface {
	Publish(ctx context.Context, e Event) error
	// Subscribe streams matching events until ctx ends or cancel is called.
	Subscribe(ctx context.Context, f Filter) (<-chan Event, func(), error)
}

const subscriberBuffer = 64
