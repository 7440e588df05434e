// Package dice provides the seeded deterministic roller used by every
// engine subsystem. A Roller constructed from the same seed string
// produces the same sequence of rolls, which is the basis for the
// engine's per-tool-call determinism guarantee.
package dice

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
)

// Roller produces rolls from a seed-derived source. It is not safe for
// concurrent use; scope one roller per tool call.
type Roller struct {
	seed string
	rng  *rand.Rand
}

// New creates a roller whose sequence is fully determined by seed.
func New(seed string) *Roller {
	sum := sha256.Sum256([]byte(seed))
	src := rand.NewSource(int64(binary.BigEndian.Uint64(sum[:8])))
	return &Roller{seed: seed, rng: rand.New(src)}
}

// Seed returns the seed string the roller was built from.
func (r *Roller) Seed() string { return r.seed }

// Roll returns a uniform integer in [1, sides]. Sides below 2 roll 1.
func (r *Roller) Roll(sides int) int {
	if sides < 2 {
		return 1
	}
	return r.rng.Intn(sides) + 1
}

// D20 rolls a twenty-sided die.
func (r *Roller) D20() int { return r.Roll(20) }

// Percent returns a uniform integer in [1, 100].
func (r *Roller) Percent() int { return r.Roll(100) }

// RollN rolls count dice of the given size and returns each result.
func (r *Roller) RollN(count, sides int) []int {
	if count < 0 {
		count = 0
	}
	rolls := make([]int, count)
	for i := range rolls {
		rolls[i] = r.Roll(sides)
	}
	return rolls
}

// D20Advantage rolls twice and keeps the best. Returns both rolls.
func (r *Roller) D20Advantage() (kept int, rolls [2]int) {
	rolls[0], rolls[1] = r.D20(), r.D20()
	kept = rolls[0]
	if rolls[1] > kept {
		kept = rolls[1]
	}
	return kept, rolls
}

// D20Disadvantage rolls twice and keeps the worst. Returns both rolls.
func (r *Roller) D20Disadvantage() (kept int, rolls [2]int) {
	rolls[0], rolls[1] = r.D20(), r.D20()
	kept = rolls[0]
	if rolls[1] < kept {
		kept = rolls[1]
	}
	return kept, rolls
}

var rollPattern = regexp.MustCompile(`^(\d+)[dD](\d+)([+-]\d+)?$`)

// Spec is a parsed dice expression such as "3d6+2".
type Spec struct {
	Count    int
	Sides    int
	Modifier int
}

// Parse parses a dice expression of the form NdS[+/-M].
func Parse(expr string) (Spec, error) {
	m := rollPattern.FindStringSubmatch(strings.TrimSpace(expr))
	if m == nil {
		return Spec{}, fmt.Errorf("invalid dice expression %q", expr)
	}
	count, _ := strconv.Atoi(m[1])
	sides, _ := strconv.Atoi(m[2])
	spec := Spec{Count: count, Sides: sides}
	if m[3] != "" {
		mod, _ := strconv.Atoi(m[3])
		spec.Modifier = mod
	}
	if spec.Count < 1 || spec.Count > 100 || spec.Sides < 2 || spec.Sides > 1000 {
		return Spec{}, fmt.Errorf("dice expression %q out of range", expr)
	}
	return spec, nil
}

// RollExpr parses and rolls a dice expression, returning the total and
// the individual die results.
func (r *Roller) RollExpr(expr string) (total int, rolls []int, err error) {
	spec, err := Parse(expr)
	if err != nil {
		return 0, nil, err
	}
	rolls = r.RollN(spec.Count, spec.Sides)
	total = spec.Modifier
	for _, roll := range rolls {
		total += roll
	}
	return total, rolls, nil
}
