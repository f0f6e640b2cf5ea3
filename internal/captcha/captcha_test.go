// ABOUTME: Tests for captcha generation and checking
// ABOUTME: Property checks over many generated challenges per difficulty

package captcha

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Properties(t *testing.T) {
	for _, difficulty := range []Difficulty{Normal, Hard} {
		t.Run(string(difficulty), func(t *testing.T) {
			for i := 0; i < 500; i++ {
				c := New(difficulty)

				require.Len(t, c.Options, OptionCount)
				require.Contains(t, c.Options, c.Answer, "options %v missing answer %d", c.Options, c.Answer)
				require.GreaterOrEqual(t, c.Answer, int64(0), "question %q produced a negative answer", c.Question)
				require.Equal(t, difficulty, c.Difficulty)

				seen := make(map[int64]bool)
				for _, opt := range c.Options {
					require.False(t, seen[opt], "duplicate option %d in %v", opt, c.Options)
					seen[opt] = true
				}

				var first, second int64
				var op string
				_, err := fmt.Sscanf(c.Question, "%d %s %d = ?", &first, &op, &second)
				require.NoError(t, err, "unparseable question %q", c.Question)

				if difficulty == Hard {
					require.True(t, op == "+" || op == "-" || op == "*", "unexpected operator in %q", c.Question)
				} else {
					require.True(t, op == "+" || op == "-", "unexpected operator in %q", c.Question)
				}

				if op == "-" {
					require.GreaterOrEqual(t, first, second, "subtraction operands out of order in %q", c.Question)
				}
			}
		})
	}
}

func TestNew_OperandRanges(t *testing.T) {
	inRange := func(v, lo, hi int64) bool { return v >= lo && v <= hi }

	for i := 0; i < 500; i++ {
		c := New(Normal)
		var first, second int64
		var op string
		_, err := fmt.Sscanf(c.Question, "%d %s %d = ?", &first, &op, &second)
		require.NoError(t, err)

		// Operands may have been swapped for subtraction, so check the pair.
		ok := (inRange(first, 2, 12) && inRange(second, 1, 9)) ||
			(op == "-" && inRange(second, 2, 12) && inRange(first, 1, 9))
		require.True(t, ok, "operands out of range in %q", c.Question)
	}

	for i := 0; i < 500; i++ {
		c := New(Hard)
		require.False(t, strings.Contains(c.Question, "/"), "unexpected division in %q", c.Question)

		var first, second int64
		var op string
		_, err := fmt.Sscanf(c.Question, "%d %s %d = ?", &first, &op, &second)
		require.NoError(t, err)

		ok := (inRange(first, 7, 19) && inRange(second, 3, 13)) ||
			(op == "-" && inRange(second, 7, 19) && inRange(first, 3, 13))
		require.True(t, ok, "operands out of range in %q", c.Question)
	}
}

func TestNew_UnknownDifficultyFallsBackToNormal(t *testing.T) {
	c := New(Difficulty("bogus"))
	assert.Equal(t, Normal, c.Difficulty)
}

func TestCheck(t *testing.T) {
	assert.True(t, Check(12, 12))
	assert.False(t, Check(12, 13))
	assert.False(t, Check(12, -12))
	assert.True(t, Check(0, 0))
}
