package social

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lhgiang040504/telecom-anomaly-detection/internal/domain"
	"github.com/lhgiang040504/telecom-anomaly-detection/internal/sampling"
)

func TestBuildPartitionsPopulation(t *testing.T) {
	tests := []struct {
		name     string
		numUsers int
	}{
		{name: "smaller than families alone", numUsers: 100},
		{name: "reference layout", numUsers: 1000},
		{name: "two users", numUsers: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := Build(tt.numUsers, DefaultOptions(), sampling.New(42))
			require.Len(t, st.Users(), tt.numUsers)

			seen := map[string]bool{}
			for _, c := range st.Communities() {
				assert.GreaterOrEqual(t, c.Size(), 2, "community %s too small", c.ID)
				for _, m := range c.Members {
					assert.False(t, seen[m], "user %s is in two communities", m)
					seen[m] = true
				}
			}
		})
	}
}

func TestBuildGroupSizes(t *testing.T) {
	st := Build(5000, DefaultOptions(), sampling.New(1))
	counts := st.CountByKind()
	assert.Equal(t, 80, counts[domain.CommunityFamily])
	assert.Equal(t, 30, counts[domain.CommunityWork])
	assert.Greater(t, counts[domain.CommunityFriend], 0)

	for _, c := range st.Communities() {
		switch c.Kind {
		case domain.CommunityFamily:
			assert.Contains(t, familySizes, c.Size())
		case domain.CommunityWork:
			assert.Contains(t, workSizes, c.Size())
		case domain.CommunityFriend:
			assert.LessOrEqual(t, c.Size(), 4)
		}
	}
}

func TestCallProbability(t *testing.T) {
	st := &Structure{
		users: []string{"a", "b", "c", "d", "e"},
		communities: []domain.Community{
			{ID: "families_0", Kind: domain.CommunityFamily, Members: []string{"a", "b"}},
			{ID: "work_groups_0", Kind: domain.CommunityWork, Members: []string{"a", "b", "c"}},
			{ID: "friend_circles_0", Kind: domain.CommunityFriend, Members: []string{"c", "d"}},
		},
		memberships: map[string][]int{
			"a": {0, 1},
			"b": {0, 1},
			"c": {1, 2},
			"d": {2},
		},
	}

	tests := []struct {
		name   string
		u1, u2 string
		want   float64
	}{
		{name: "family wins over work", u1: "a", u2: "b", want: ProbabilityFamily},
		{name: "work only", u1: "a", u2: "c", want: ProbabilityWork},
		{name: "friend only", u1: "c", u2: "d", want: ProbabilityFriend},
		{name: "no shared community", u1: "a", u2: "d", want: ProbabilityStranger},
		{name: "user without communities", u1: "e", u2: "a", want: ProbabilityStranger},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, st.CallProbability(tt.u1, tt.u2))
			assert.Equal(t, tt.want, st.CallProbability(tt.u2, tt.u1), "probability is symmetric")
		})
	}

	assert.ElementsMatch(t, []string{"b", "b", "c"}, st.CoMembers("a"))
	assert.Equal(t, []string{"families_0", "work_groups_0"}, st.Memberships("a"))
	assert.Empty(t, st.CoMembers("e"))
}

func TestBuildIsDeterministic(t *testing.T) {
	a := Build(600, DefaultOptions(), sampling.New(5))
	b := Build(600, DefaultOptions(), sampling.New(5))
	assert.Equal(t, a.Communities(), b.Communities())
}
