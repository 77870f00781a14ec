package challenge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry(DefaultLimits(), nil)
	t.Cleanup(r.Close)
	return r
}

func TestIssueUnknownType(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.Issue("s1", Type("image-select"))
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestIssueEachKind(t *testing.T) {
	r := newTestRegistry(t)

	for _, typ := range []Type{PointerPattern, ClickSequence, TypingCadence} {
		c, err := r.Issue("s-"+string(typ), typ)
		require.NoError(t, err)
		assert.Equal(t, typ, c.Type)
		assert.NotEmpty(t, c.ID)
		assert.NotEmpty(t, c.Instruction)
		assert.Positive(t, c.TimeLimitMs)
	}
}

func TestValidateClickSequence(t *testing.T) {
	r := newTestRegistry(t)

	c, err := r.Issue("s1", ClickSequence)
	require.NoError(t, err)
	c.ExpectedClicks = []int{1, 3, 2}

	valid, err := r.Validate(c.ID, &Response{ClickSequence: []int{1, 3, 2}})
	require.NoError(t, err)
	assert.True(t, valid)

	// A fresh challenge: the exact sequence in a different order fails.
	c, err = r.Issue("s1", ClickSequence)
	require.NoError(t, err)
	c.ExpectedClicks = []int{1, 3, 2}

	valid, err = r.Validate(c.ID, &Response{ClickSequence: []int{1, 2, 3}})
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestValidateTypingCadence(t *testing.T) {
	r := newTestRegistry(t)

	c, err := r.Issue("s1", TypingCadence)
	require.NoError(t, err)

	valid, err := r.Validate(c.ID, &Response{Text: c.ExpectedText})
	require.NoError(t, err)
	assert.True(t, valid)

	c, err = r.Issue("s1", TypingCadence)
	require.NoError(t, err)

	valid, err = r.Validate(c.ID, &Response{Text: "Not The Phrase"})
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestValidatePointerPattern(t *testing.T) {
	r := newTestRegistry(t)

	path := func(n int) []PathPoint {
		pts := make([]PathPoint, n)
		for i := range pts {
			pts[i] = PathPoint{X: float64(i), Y: float64(i), T: int64(i * 10)}
		}
		return pts
	}

	c, err := r.Issue("s1", PointerPattern)
	require.NoError(t, err)

	valid, err := r.Validate(c.ID, &Response{Path: path(21), CompletionTimeMs: 5000})
	require.NoError(t, err)
	assert.True(t, valid)

	c, err = r.Issue("s1", PointerPattern)
	require.NoError(t, err)

	valid, err = r.Validate(c.ID, &Response{Path: path(20), CompletionTimeMs: 5000})
	require.NoError(t, err)
	assert.False(t, valid, "20 points is not more than 20")
}

func TestValidateExpiredRegardlessOfPayload(t *testing.T) {
	r := newTestRegistry(t)

	c, err := r.Issue("s1", TypingCadence)
	require.NoError(t, err)

	r.now = func() int64 { return c.IssuedAt + c.TimeLimitMs + 1 }

	_, err = r.Validate(c.ID, &Response{Text: c.ExpectedText})
	assert.ErrorIs(t, err, ErrExpired)
}

func TestValidateConsumesChallenge(t *testing.T) {
	r := newTestRegistry(t)

	c, err := r.Issue("s1", TypingCadence)
	require.NoError(t, err)

	_, err = r.Validate(c.ID, &Response{Text: "whatever"})
	require.NoError(t, err)

	_, err = r.Validate(c.ID, &Response{Text: c.ExpectedText})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestValidateUnknownID(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.Validate("nope", &Response{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSecondIssueReplacesOutstanding(t *testing.T) {
	r := newTestRegistry(t)

	first, err := r.Issue("s1", ClickSequence)
	require.NoError(t, err)
	second, err := r.Issue("s1", TypingCadence)
	require.NoError(t, err)

	id, ok := r.Outstanding("s1")
	require.True(t, ok)
	assert.Equal(t, second.ID, id)

	// The replaced challenge is gone.
	_, err = r.Validate(first.ID, &Response{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSweepExpiresAndNotifies(t *testing.T) {
	var gotSession, gotChallenge string
	r := NewRegistry(DefaultLimits(), func(sessionID, challengeID string) {
		gotSession, gotChallenge = sessionID, challengeID
	})
	t.Cleanup(r.Close)

	c, err := r.Issue("s1", PointerPattern)
	require.NoError(t, err)

	r.now = func() int64 { return c.IssuedAt + c.TimeLimitMs + 1 }
	r.sweep()

	assert.Equal(t, "s1", gotSession)
	assert.Equal(t, c.ID, gotChallenge)

	_, ok := r.Outstanding("s1")
	assert.False(t, ok)

	// Sweeping again is a no-op.
	gotSession = ""
	r.sweep()
	assert.Empty(t, gotSession)
}
