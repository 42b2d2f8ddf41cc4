// Package social partitions the user population into families, work groups and friend
// circles and scores call affinity between pairs of users.
package social

import (
	"fmt"

	"github.com/lhgiang040504/telecom-anomaly-detection/internal/domain"
	"github.com/lhgiang040504/telecom-anomaly-detection/internal/sampling"
)

// Call probabilities by strongest shared tie.
const (
	ProbabilityStranger = 0.01
	ProbabilityFamily   = 0.3
	ProbabilityWork     = 0.15
	ProbabilityFriend   = 0.08
)

var (
	familySizes   = []int{2, 3, 4, 5}
	familyWeights = []float64{0.2, 0.4, 0.3, 0.1}
	workSizes     = []int{3, 5, 8, 12}
	workWeights   = []float64{0.3, 0.4, 0.2, 0.1}
)

// Options controls how many groups of each kind are formed.
type Options struct {
	FamilyCount      int
	WorkGroupCount   int
	FriendCircleSize int
}

// DefaultOptions mirrors the reference population layout.
func DefaultOptions() Options {
	return Options{
		FamilyCount:      80,
		WorkGroupCount:   30,
		FriendCircleSize: 4,
	}
}

// Structure is the immutable social graph of a population.
type Structure struct {
	users       []string
	communities []domain.Community
	memberships map[string][]int
}

// UserID formats the identifier of the n-th user.
func UserID(n int) string {
	return fmt.Sprintf("user_%04d", n)
}

// Build creates numUsers users and groups them. Families are formed first, then work
// groups, then friend circles over whoever is left. A group that would overflow the
// population is truncated, and groups smaller than two are not recorded.
func Build(numUsers int, opts Options, s *sampling.Sampler) *Structure {
	if opts.FriendCircleSize < 2 {
		opts.FriendCircleSize = DefaultOptions().FriendCircleSize
	}

	st := &Structure{
		users:       make([]string, 0, numUsers),
		memberships: make(map[string][]int, numUsers),
	}

	take := func(size int) []string {
		if remaining := numUsers - len(st.users); size > remaining {
			size = remaining
		}
		group := make([]string, size)
		for i := range group {
			group[i] = UserID(len(st.users))
			st.users = append(st.users, group[i])
		}
		return group
	}

	counts := map[domain.CommunityKind]int{}
	add := func(kind domain.CommunityKind, members []string) {
		if len(members) < 2 {
			return
		}
		id := fmt.Sprintf("%s_%d", kind.TableName(), counts[kind])
		counts[kind]++
		st.communities = append(st.communities, domain.Community{ID: id, Kind: kind, Members: members})
		idx := len(st.communities) - 1
		for _, m := range members {
			st.memberships[m] = append(st.memberships[m], idx)
		}
	}

	for i := 0; i < opts.FamilyCount && len(st.users) < numUsers; i++ {
		add(domain.CommunityFamily, take(familySizes[s.Categorical(familyWeights)]))
	}
	for i := 0; i < opts.WorkGroupCount && len(st.users) < numUsers; i++ {
		add(domain.CommunityWork, take(workSizes[s.Categorical(workWeights)]))
	}
	for len(st.users) < numUsers {
		add(domain.CommunityFriend, take(opts.FriendCircleSize))
	}

	return st
}

// Users returns every user id in creation order.
func (st *Structure) Users() []string {
	return st.users
}

// Communities returns all recorded communities.
func (st *Structure) Communities() []domain.Community {
	return st.communities
}

// Memberships returns the ids of the communities the user belongs to.
func (st *Structure) Memberships(userID string) []string {
	idx := st.memberships[userID]
	out := make([]string, len(idx))
	for i, ci := range idx {
		out[i] = st.communities[ci].ID
	}
	return out
}

// CoMembers returns every other member of every community of the user. A user that
// shares several communities with the caller appears once per shared community.
func (st *Structure) CoMembers(userID string) []string {
	var out []string
	for _, ci := range st.memberships[userID] {
		for _, m := range st.communities[ci].Members {
			if m != userID {
				out = append(out, m)
			}
		}
	}
	return out
}

// CallProbability scores the affinity between two users by the strongest community they
// share: family, then work, then friend. Users with nothing in common get
// ProbabilityStranger.
func (st *Structure) CallProbability(u1, u2 string) float64 {
	best := ProbabilityStranger
	for _, a := range st.memberships[u1] {
		for _, b := range st.memberships[u2] {
			if a != b {
				continue
			}
			p := kindProbability(st.communities[a].Kind)
			if p > best {
				best = p
			}
		}
	}
	return best
}

// CountByKind returns the number of communities of each kind.
func (st *Structure) CountByKind() map[domain.CommunityKind]int {
	out := make(map[domain.CommunityKind]int, 3)
	for _, c := range st.communities {
		out[c.Kind]++
	}
	return out
}

func kindProbability(kind domain.CommunityKind) float64 {
	switch kind {
	case domain.CommunityFamily:
		return ProbabilityFamily
	case domain.CommunityWork:
		return ProbabilityWork
	case domain.CommunityFriend:
		return ProbabilityFriend
	default:
		return ProbabilityStranger
	}
}
