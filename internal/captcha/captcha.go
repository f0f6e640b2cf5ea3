// ABOUTME: Arithmetic captcha generation and answer checking
// ABOUTME: Two difficulty tiers with decoy answers for inline keyboards

package captcha

import (
	"fmt"
	"math/rand/v2"
	"slices"
)

// Difficulty selects the operand ranges and operator set for a challenge.
type Difficulty string

const (
	Normal Difficulty = "normal"
	Hard   Difficulty = "hard"
)

// OptionCount is how many candidate answers a challenge presents.
const OptionCount = 4

// Challenge is a generated arithmetic question. Options always contains the
// correct answer among OptionCount distinct values, in shuffled order. The
// answer itself must never be sent anywhere an applicant could see it.
type Challenge struct {
	Question   string
	Answer     int64
	Difficulty Difficulty
	Options    []int64
}

// New generates a challenge at the given difficulty. Anything other than
// Hard produces a Normal challenge.
//
// Normal draws operands from 2..12 and 1..9 with + or -; Hard widens to
// 7..19 and 3..13 and adds *. Subtraction operands are ordered so the
// result is never negative.
func New(difficulty Difficulty) *Challenge {
	var first, second int64
	var op string

	if difficulty == Hard {
		first = 7 + rand.Int64N(13)
		second = 3 + rand.Int64N(11)
		op = []string{"+", "-", "*"}[rand.IntN(3)]
	} else {
		difficulty = Normal
		first = 2 + rand.Int64N(11)
		second = 1 + rand.Int64N(9)
		op = []string{"+", "-"}[rand.IntN(2)]
	}

	if op == "-" && second > first {
		first, second = second, first
	}

	var answer int64
	switch op {
	case "+":
		answer = first + second
	case "-":
		answer = first - second
	default:
		answer = first * second
	}

	return &Challenge{
		Question:   fmt.Sprintf("%d %s %d = ?", first, op, second),
		Answer:     answer,
		Difficulty: difficulty,
		Options:    decoys(answer, difficulty),
	}
}

// decoys builds OptionCount distinct candidates around the answer and
// shuffles them. The noise window is wider for hard challenges so decoys
// are not trivially implausible.
func decoys(answer int64, difficulty Difficulty) []int64 {
	noise := int64(7)
	if difficulty == Hard {
		noise = 20
	}

	options := []int64{answer}
	for len(options) < OptionCount {
		candidate := answer + rand.Int64N(2*noise+1) - noise
		if !slices.Contains(options, candidate) {
			options = append(options, candidate)
		}
	}

	rand.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})
	return options
}

// Check reports whether a submitted answer matches the expected one.
// Strict equality, no tolerance.
func Check(expected, submitted int64) bool {
	return expected == submitted
}
