package trips

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/depot-ops/depot-ops/internal/shared"
)

func TestParseMode(t *testing.T) {
	cases := map[string]Mode{"": ModeShared, "shared": ModeShared, " Branch ": ModeBranch}
	for in, want := range cases {
		got, err := ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseMode("per-driver")
	assert.Error(t, err)
}

func TestPolicyVisibility(t *testing.T) {
	p := Policy{Mode: ModeBranch}
	sharedTrip := Trip{Branch: shared.SharedScope}
	kemangTrip := Trip{Branch: "Kemang"}

	assert.True(t, p.Visible(depokOp, sharedTrip))
	assert.True(t, p.Visible(kemangOp, kemangTrip))
	assert.False(t, p.Visible(depokOp, kemangTrip))
	assert.True(t, p.Visible(admin, kemangTrip))
}

func TestPolicyAssignStatus(t *testing.T) {
	sharedPolicy := Policy{Mode: ModeShared}
	branchPolicy := Policy{Mode: ModeBranch}

	for _, st := range []Status{StatusPending, StatusInProgress} {
		got, err := branchPolicy.AssignStatus(Trip{Status: st})
		require.NoError(t, err)
		assert.Equal(t, StatusInProgress, got)
	}

	_, err := branchPolicy.AssignStatus(Trip{Status: StatusCompleted})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = sharedPolicy.AssignStatus(Trip{Status: StatusCompleted, OrderIDs: []string{"x"}})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	got, err := sharedPolicy.AssignStatus(Trip{Status: StatusCompleted})
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, got)

	assert.False(t, sharedPolicy.AllowsReorder())
	assert.True(t, branchPolicy.AllowsReorder())
}

func TestNameLess(t *testing.T) {
	assert.True(t, nameLess("Trip 2", "Trip 10"))
	assert.False(t, nameLess("Trip 10", "Trip 9"))
	assert.True(t, nameLess("Pagi", "Trip 1"))
}
