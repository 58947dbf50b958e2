package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		allowed bool
	}{
		{name: "pending to in progress", from: StatusPending, to: StatusInProgress, allowed: true},
		{name: "pending to resolved", from: StatusPending, to: StatusResolved, allowed: true},
		{name: "in progress to resolved", from: StatusInProgress, to: StatusResolved, allowed: true},
		{name: "in progress to pending", from: StatusInProgress, to: StatusPending, allowed: false},
		{name: "resolved to in progress", from: StatusResolved, to: StatusInProgress, allowed: false},
		{name: "resolved to pending", from: StatusResolved, to: StatusPending, allowed: false},
		{name: "same status", from: StatusInProgress, to: StatusInProgress, allowed: false},
		{name: "unknown source", from: Status("Archived"), to: StatusResolved, allowed: false},
		{name: "unknown target", from: StatusPending, to: Status("Archived"), allowed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestParseCategory(t *testing.T) {
	assert.Equal(t, CategoryFire, ParseCategory("Fire"))
	assert.Equal(t, CategoryTraffic, ParseCategory("  Traffic  "))
	// Неизвестные значения классификатора не должны попадать в хранилище как есть
	assert.Equal(t, CategoryOther, ParseCategory("Earthquake"))
	assert.Equal(t, CategoryOther, ParseCategory(""))
}

func TestParsePriority(t *testing.T) {
	assert.Equal(t, PriorityHigh, ParsePriority("High"))
	assert.Equal(t, PriorityMedium, ParsePriority(" Medium "))
	assert.Equal(t, PriorityLow, ParsePriority("Critical"))
	assert.Equal(t, PriorityLow, ParsePriority(""))
}

func TestParseStatus(t *testing.T) {
	st, ok := ParseStatus("In Progress")
	assert.True(t, ok)
	assert.Equal(t, StatusInProgress, st)

	st, ok = ParseStatus(" Resolved ")
	assert.True(t, ok)
	assert.Equal(t, StatusResolved, st)

	_, ok = ParseStatus("Closed")
	assert.False(t, ok)
}
