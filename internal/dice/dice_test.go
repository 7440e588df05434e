package dice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRollerDeterminism(t *testing.T) {
	a := New("battle-1")
	b := New("battle-1")
	for i := 0; i < 100; i++ {
		assert.Equal(t, a.D20(), b.D20(), "roll %d diverged", i)
	}
}

func TestRollerSeedsDiverge(t *testing.T) {
	a := New("battle-1")
	b := New("battle-2")
	same := true
	for i := 0; i < 20; i++ {
		if a.D20() != b.D20() {
			same = false
			break
		}
	}
	assert.False(t, same, "different seeds produced identical sequences")
}

func TestRollBounds(t *testing.T) {
	r := New("bounds")
	for i := 0; i < 1000; i++ {
		roll := r.D20()
		require.GreaterOrEqual(t, roll, 1)
		require.LessOrEqual(t, roll, 20)
	}
	assert.Equal(t, 1, r.Roll(1))
	assert.Equal(t, 1, r.Roll(0))
}

func TestAdvantageDisadvantage(t *testing.T) {
	r := New("adv")
	kept, rolls := r.D20Advantage()
	assert.Equal(t, max(rolls[0], rolls[1]), kept)

	kept, rolls = r.D20Disadvantage()
	assert.Equal(t, min(rolls[0], rolls[1]), kept)
}

func TestParse(t *testing.T) {
	tests := []struct {
		expr    string
		want    Spec
		wantErr bool
	}{
		{expr: "3d6+2", want: Spec{Count: 3, Sides: 6, Modifier: 2}},
		{expr: "1d20", want: Spec{Count: 1, Sides: 20}},
		{expr: "2d8-1", want: Spec{Count: 2, Sides: 8, Modifier: -1}},
		{expr: "4D10", want: Spec{Count: 4, Sides: 10}},
		{expr: "d6", wantErr: true},
		{expr: "3x6", wantErr: true},
		{expr: "0d6", wantErr: true},
		{expr: "3d1", wantErr: true},
		{expr: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Parse(tt.expr)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRollExpr(t *testing.T) {
	r := New("expr")
	total, rolls, err := r.RollExpr("3d6+2")
	require.NoError(t, err)
	require.Len(t, rolls, 3)
	sum := 2
	for _, roll := range rolls {
		assert.GreaterOrEqual(t, roll, 1)
		assert.LessOrEqual(t, roll, 6)
		sum += roll
	}
	assert.Equal(t, sum, total)
}
