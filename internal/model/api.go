// Package model defines the wire types of the Signal Harvester backend API.
package model

import "time"

// DiscoverySignal is a single discovery signal surfaced by the backend.
type DiscoverySignal struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Source     string    `json:"source"`
	Category   string    `json:"category"`
	Score      float64   `json:"score"`
	Tags       []string  `json:"tags,omitempty"`
	DetectedAt time.Time `json:"detected_at"`
}

// ResearchArtifact is a document or dataset attached to a signal.
type ResearchArtifact struct {
	ID        string    `json:"id"`
	SignalID  string    `json:"signal_id"`
	Title     string    `json:"title"`
	Kind      string    `json:"kind"`
	Status    string    `json:"status"`
	URL       string    `json:"url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TrendingTopic is an aggregated topic with its momentum over a window.
type TrendingTopic struct {
	Topic       string  `json:"topic"`
	Mentions    int     `json:"mentions"`
	Velocity    float64 `json:"velocity"`
	WindowHours int     `json:"window_hours"`
}

// EntityRelationship is one edge in the entity graph around a root entity.
type EntityRelationship struct {
	SourceID string  `json:"source_id"`
	TargetID string  `json:"target_id"`
	Relation string  `json:"relation"`
	Weight   float64 `json:"weight"`
}

// Annotation is a user note attached to a signal or artifact.
type Annotation struct {
	ID        string    `json:"id,omitempty"`
	TargetID  string    `json:"target_id"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Page carries the pagination fields common to all list responses.
type Page struct {
	Total  int `json:"total"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// SignalList is the backend envelope for signal listings.
type SignalList struct {
	Page
	Items []DiscoverySignal `json:"items"`
}

// ArtifactList is the backend envelope for artifact listings.
type ArtifactList struct {
	Page
	Items []ResearchArtifact `json:"items"`
}

// TopicList is the backend envelope for trending topic listings.
type TopicList struct {
	Items []TrendingTopic `json:"items"`
}

// RelationshipGraph is the backend envelope for entity relationship queries.
type RelationshipGraph struct {
	RootID string               `json:"root_id"`
	Depth  int                  `json:"depth"`
	Edges  []EntityRelationship `json:"edges"`
}

// Overview bundles the dashboard landing-page data in one response.
type Overview struct {
	Signals   []DiscoverySignal  `json:"signals"`
	Topics    []TrendingTopic    `json:"topics"`
	Artifacts []ResearchArtifact `json:"artifacts"`
}

// SignalFilter narrows a signal listing.
type SignalFilter struct {
	Category string
	Source   string
	MinScore float64
	Offset   int
	Limit    int
}

// ArtifactFilter narrows an artifact listing.
type ArtifactFilter struct {
	SignalID string
	Kind     string
	Status   string
	Offset   int
	Limit    int
}
