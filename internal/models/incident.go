package models

import (
	"strings"
	"time"
)

// Category - категория инцидента, присваивается классификатором
type Category string

const (
	CategoryAccident Category = "Accident"
	CategoryFire     Category = "Fire"
	CategoryTheft    Category = "Theft"
	CategoryMedical  Category = "Medical"
	CategoryTraffic  Category = "Traffic"
	CategoryOther    Category = "Other"
)

// Priority - приоритет инцидента
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// Status - статус обработки инцидента администратором
type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "In Progress"
	StatusResolved   Status = "Resolved"
)

// statusRank задает порядок статусов, переходы разрешены только вперед
var statusRank = map[Status]int{
	StatusPending:    0,
	StatusInProgress: 1,
	StatusResolved:   2,
}

// ParseCategory приводит строку к известной категории, неизвестные значения дают Other
func ParseCategory(s string) Category {
	c := Category(strings.TrimSpace(s))
	switch c {
	case CategoryAccident, CategoryFire, CategoryTheft, CategoryMedical, CategoryTraffic, CategoryOther:
		return c
	}
	return CategoryOther
}

// ParsePriority приводит строку к известному приоритету, неизвестные значения дают Low
func ParsePriority(s string) Priority {
	p := Priority(strings.TrimSpace(s))
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p
	}
	return PriorityLow
}

// ParseStatus приводит строку к известному статусу
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.TrimSpace(s))
	switch st {
	case StatusPending, StatusInProgress, StatusResolved:
		return st, true
	}
	return "", false
}

// CanTransitionTo проверяет, что переход статуса идет только вперед:
// Pending -> In Progress -> Resolved
func (s Status) CanTransitionTo(next Status) bool {
	cur, ok := statusRank[s]
	if !ok {
		return false
	}
	nxt, ok := statusRank[next]
	if !ok {
		return false
	}
	return nxt > cur
}

type Incident struct {
	ID          string    `bson:"_id" json:"id"`
	Location    string    `bson:"location" json:"location"`
	Description string    `bson:"description" json:"description"`
	SubmittedBy string    `bson:"submitted_by,omitempty" json:"submitted_by,omitempty"`
	Category    Category  `bson:"category" json:"category"`
	Summary     string    `bson:"summary" json:"summary"`
	Priority    Priority  `bson:"priority" json:"priority"`
	Status      Status    `bson:"status" json:"status"`
	MediaURL    string    `bson:"media_url,omitempty" json:"media_url,omitempty"`
	ProofURL    string    `bson:"proof_url,omitempty" json:"proof_url,omitempty"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
}
