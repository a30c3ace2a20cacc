package deletion_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/reelhaven/reelhaven/internal/deletion"
)

func TestTally_Percentage(t *testing.T) {
	tests := []struct {
		name  string
		tally deletion.Tally
		want  float64
	}{
		{"no votes", deletion.Tally{}, 0},
		{"all in favor", deletion.Tally{For: 5}, 100},
		{"all against", deletion.Tally{Against: 5}, 0},
		{"exact sixty", deletion.Tally{For: 6, Against: 4}, 60},
		{"half", deletion.Tally{For: 1, Against: 1}, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.tally.Percentage(), 0.0001)
		})
	}
}

func TestDecide(t *testing.T) {
	const required = 60.0

	tests := []struct {
		name  string
		tally deletion.Tally
		want  deletion.Status
	}{
		{"zero votes rejects", deletion.Tally{}, deletion.StatusRejected},
		{"exactly at threshold approves", deletion.Tally{For: 6, Against: 4}, deletion.StatusApproved},
		{"just under threshold rejects", deletion.Tally{For: 59, Against: 41}, deletion.StatusRejected},
		{"single vote in favor approves", deletion.Tally{For: 1}, deletion.StatusApproved},
		{"single vote against rejects", deletion.Tally{Against: 1}, deletion.StatusRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, deletion.Decide(tt.tally, required))
		})
	}
}

func TestDecide_ZeroThreshold(t *testing.T) {
	// A zero threshold still requires at least one vote.
	assert.Equal(t, deletion.StatusRejected, deletion.Decide(deletion.Tally{}, 0))
	assert.Equal(t, deletion.StatusApproved, deletion.Decide(deletion.Tally{Against: 1}, 0))
}

func TestDecidedEarly(t *testing.T) {
	const required = 60.0

	tests := []struct {
		name     string
		tally    deletion.Tally
		eligible int
		want     deletion.Status
		decided  bool
	}{
		{"disabled when eligible is zero", deletion.Tally{For: 10}, 0, "", false},
		{"undecided with votes outstanding", deletion.Tally{For: 2, Against: 1}, 10, "", false},
		{"approval certain", deletion.Tally{For: 9}, 10, deletion.StatusApproved, true},
		{"rejection certain", deletion.Tally{Against: 9}, 10, deletion.StatusRejected, true},
		{"all votes in", deletion.Tally{For: 6, Against: 4}, 10, deletion.StatusApproved, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, decided := deletion.DecidedEarly(tt.tally, required, tt.eligible)
			assert.Equal(t, tt.decided, decided)
			assert.Equal(t, tt.want, got)
		})
	}
}
