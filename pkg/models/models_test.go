package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModifier(t *testing.T) {
	tests := []struct {
		score int
		want  int
	}{
		{score: 10, want: 0},
		{score: 11, want: 0},
		{score: 12, want: 1},
		{score: 16, want: 3},
		{score: 20, want: 5},
		{score: 9, want: -1},
		{score: 8, want: -1},
		{score: 7, want: -2},
		{score: 1, want: -5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Modifier(tt.score), "score %d", tt.score)
	}
}

func TestProficiencyBonus(t *testing.T) {
	c := &Character{Level: 1}
	assert.Equal(t, 2, c.ProficiencyBonus())
	c.Level = 4
	assert.Equal(t, 2, c.ProficiencyBonus())
	c.Level = 5
	assert.Equal(t, 3, c.ProficiencyBonus())
	c.Level = 17
	assert.Equal(t, 6, c.ProficiencyBonus())
}

func TestHeatDecayChain(t *testing.T) {
	h := HeatBurning
	chain := []HeatLevel{HeatHot, HeatWarm, HeatCool, HeatCold, HeatCold}
	for _, want := range chain {
		h = h.Cooler()
		assert.Equal(t, want, h)
	}
	assert.Greater(t, HeatBurning.Rank(), HeatHot.Rank())
	assert.Greater(t, HeatHot.Rank(), HeatWarm.Rank())
	assert.Greater(t, HeatWarm.Rank(), HeatCool.Rank())
	assert.Greater(t, HeatCool.Rank(), HeatCold.Rank())
}

func TestQuestLogMembership(t *testing.T) {
	log := &QuestLog{
		ActiveQuests:    []string{"a"},
		CompletedQuests: []string{"b"},
		FailedQuests:    []string{"c"},
	}
	assert.True(t, log.Has("a"))
	assert.True(t, log.Has("b"))
	assert.True(t, log.Has("c"))
	assert.False(t, log.Has("d"))
	assert.True(t, log.HasCompleted("b"))
	assert.False(t, log.HasCompleted("a"))
}
