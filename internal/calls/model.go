// Package calls samples normal call traffic over a population and its social structure.
package calls

import (
	"errors"
	"time"

	"github.com/lhgiang040504/telecom-anomaly-detection/internal/domain"
	"github.com/lhgiang040504/telecom-anomaly-detection/internal/sampling"
	"github.com/lhgiang040504/telecom-anomaly-detection/internal/social"
)

// Distribution is a floored Gaussian over call durations in seconds.
type Distribution struct {
	Mean float64 `yaml:"mean" json:"mean"`
	Std  float64 `yaml:"std" json:"std"`
	Min  int     `yaml:"min" json:"min"`
}

// Duration distribution keys.
const (
	DurationNormal       = "normal"
	DurationBusiness     = "business"
	DurationShortAnomaly = "short_anomaly"
	DurationLongAnomaly  = "long_anomaly"
)

// Params holds the sampling tables of the traffic model.
type Params struct {
	StartDate             time.Time
	HourWeights           map[domain.CallPattern][]float64
	Durations             map[string]Distribution
	WeekendBusinessFactor float64
	WeekendSocialFactor   float64
	HandoverProbability   float64
	WeakTieLimit          int
	WeakTieDivisor        int
}

// DefaultParams returns the reference traffic model.
func DefaultParams() Params {
	return Params{
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		HourWeights: map[domain.CallPattern][]float64{
			domain.CallPatternBusiness: {0.01, 0.005, 0.002, 0.001, 0.003, 0.01, 0.05, 0.12, 0.15, 0.14, 0.13, 0.11,
				0.09, 0.08, 0.07, 0.06, 0.05, 0.07, 0.12, 0.15, 0.14, 0.11, 0.09, 0.06},
			domain.CallPatternSocial: {0.02, 0.01, 0.005, 0.003, 0.005, 0.02, 0.08, 0.12, 0.10, 0.08, 0.07, 0.06,
				0.05, 0.04, 0.04, 0.05, 0.07, 0.10, 0.15, 0.18, 0.16, 0.14, 0.12, 0.08},
		},
		Durations: map[string]Distribution{
			DurationNormal:       {Mean: 180, Std: 120, Min: 10},
			DurationBusiness:     {Mean: 300, Std: 180, Min: 30},
			DurationShortAnomaly: {Mean: 3, Std: 2, Min: 1},
			DurationLongAnomaly:  {Mean: 3600, Std: 1800, Min: 1800},
		},
		WeekendBusinessFactor: 0.5,
		WeekendSocialFactor:   1.5,
		HandoverProbability:   0.15,
		WeakTieLimit:          50,
		WeakTieDivisor:        20,
	}
}

// ErrTooFewUsers is returned when a population cannot produce caller/callee pairs.
var ErrTooFewUsers = errors.New("at least two users are required")

// ErrNoTowers is returned when a population has no cell towers.
var ErrNoTowers = errors.New("at least one cell tower is required")

// Population is the read-only input shared by every generator and worker.
type Population struct {
	Users  []domain.User
	Index  domain.UserIndex
	Social *social.Structure
	Towers []domain.CellTower

	userPos  map[string]int
	towerPos map[string]int
}

// NewPopulation indexes users and towers for sampling.
func NewPopulation(users []domain.User, st *social.Structure, towers []domain.CellTower) (*Population, error) {
	if len(users) < 2 {
		return nil, ErrTooFewUsers
	}
	if len(towers) == 0 {
		return nil, ErrNoTowers
	}
	p := &Population{
		Users:    users,
		Index:    domain.IndexUsers(users),
		Social:   st,
		Towers:   towers,
		userPos:  make(map[string]int, len(users)),
		towerPos: make(map[string]int, len(towers)),
	}
	for i, u := range users {
		p.userPos[u.ID] = i
	}
	for i, t := range towers {
		p.towerPos[t.ID] = i
	}
	return p, nil
}

// Model binds the sampling tables to a population. It holds no random state, so one
// Model is shared by all workers, each passing its own Sampler.
type Model struct {
	params Params
	pop    *Population
}

// NewModel returns a Model, filling missing tables from DefaultParams.
func NewModel(params Params, pop *Population) *Model {
	def := DefaultParams()
	if params.StartDate.IsZero() {
		params.StartDate = def.StartDate
	}
	if len(params.HourWeights) == 0 {
		params.HourWeights = def.HourWeights
	}
	if len(params.Durations) == 0 {
		params.Durations = def.Durations
	}
	if params.WeekendBusinessFactor <= 0 {
		params.WeekendBusinessFactor = def.WeekendBusinessFactor
	}
	if params.WeekendSocialFactor <= 0 {
		params.WeekendSocialFactor = def.WeekendSocialFactor
	}
	if params.WeakTieDivisor <= 0 {
		params.WeakTieDivisor = def.WeakTieDivisor
	}
	return &Model{params: params, pop: pop}
}

// Params returns the effective sampling tables.
func (m *Model) Params() Params {
	return m.params
}

// Population returns the population the model samples from.
func (m *Model) Population() *Population {
	return m.pop
}

// Day returns midnight of the given simulation day.
func (m *Model) Day(day int) time.Time {
	return m.params.StartDate.AddDate(0, 0, day)
}

// Timestamp samples a call start on the given day using the hourly profile of the pattern.
// Weekend days scale business weights down and social weights up before normalisation.
func (m *Model) Timestamp(s *sampling.Sampler, day int, pattern domain.CallPattern) time.Time {
	base := m.Day(day)
	if pattern != domain.CallPatternBusiness {
		pattern = domain.CallPatternSocial
	}
	weights := m.params.HourWeights[pattern]

	if wd := base.Weekday(); wd == time.Saturday || wd == time.Sunday {
		factor := m.params.WeekendSocialFactor
		if pattern == domain.CallPatternBusiness {
			factor = m.params.WeekendBusinessFactor
		}
		scaled := make([]float64, len(weights))
		for i, w := range weights {
			scaled[i] = w * factor
		}
		weights = scaled
	}

	hour := s.Categorical(weights)
	return time.Date(base.Year(), base.Month(), base.Day(), hour, s.IntRange(0, 59), s.IntRange(0, 59), 0, base.Location())
}

// Duration samples a call length in seconds. Anomalous short calls use the short anomaly
// distribution, any other anomaly the long one; normal calls depend on the user type.
func (m *Model) Duration(s *sampling.Sampler, userType domain.UserType, anomaly domain.AnomalyType) int {
	key := DurationNormal
	switch {
	case anomaly == domain.AnomalyShort:
		key = DurationShortAnomaly
	case anomaly != domain.AnomalyNone && anomaly != "":
		key = DurationLongAnomaly
	case userType == domain.UserTypeBusiness:
		key = DurationBusiness
	}
	dist := m.params.Durations[key]

	d := int(s.Normal(dist.Mean, dist.Std))
	if d < dist.Min {
		return dist.Min
	}
	return d
}

// SelectCallee picks a callee for caller, weighting the caller's community co-members and
// a random sample of weak ties by their call probability. It never returns the caller.
func (m *Model) SelectCallee(s *sampling.Sampler, caller string) string {
	candidates := m.pop.Social.CoMembers(caller)

	n := len(m.pop.Users)
	k := n / m.params.WeakTieDivisor
	if m.params.WeakTieLimit > 0 && k > m.params.WeakTieLimit {
		k = m.params.WeakTieLimit
	}
	callerPos, known := m.pop.userPos[caller]
	for _, idx := range s.SampleIndices(n-1, k) {
		if known && idx >= callerPos {
			idx++
		}
		candidates = append(candidates, m.pop.Users[idx].ID)
	}

	if len(candidates) == 0 {
		candidates = make([]string, 0, n-1)
		for _, u := range m.pop.Users {
			if u.ID != caller {
				candidates = append(candidates, u.ID)
			}
		}
	}

	weights := make([]float64, len(candidates))
	for i, c := range candidates {
		weights[i] = m.pop.Social.CallProbability(caller, c)
	}
	return candidates[s.Categorical(weights)]
}

// RandomOther returns a uniformly chosen user other than caller.
func (m *Model) RandomOther(s *sampling.Sampler, caller string) domain.User {
	n := len(m.pop.Users)
	idx := s.Intn(n - 1)
	if pos, ok := m.pop.userPos[caller]; ok && idx >= pos {
		idx++
	}
	return m.pop.Users[idx]
}

// RandomUser returns a uniformly chosen user.
func (m *Model) RandomUser(s *sampling.Sampler) domain.User {
	return m.pop.Users[s.Intn(len(m.pop.Users))]
}

// NormalCall samples one unlabeled call over totalDays days.
func (m *Model) NormalCall(s *sampling.Sampler, id string, totalDays int) domain.CallRecord {
	caller := m.RandomUser(s)
	callee := m.pop.Index[m.SelectCallee(s, caller.ID)]
	start := m.Timestamp(s, s.Intn(totalDays), caller.CallPattern)
	duration := m.Duration(s, caller.UserType, domain.AnomalyNone)

	lastCell := caller.HomeCellID
	if s.Float64() < m.params.HandoverProbability {
		lastCell = m.otherTower(s, caller.HomeCellID)
	}
	return domain.NewCallRecord(id, caller, callee, start, duration, caller.HomeCellID, lastCell, domain.AnomalyNone)
}

// otherTower returns a tower other than home, or home when it is the only tower.
func (m *Model) otherTower(s *sampling.Sampler, home string) string {
	towers := m.pop.Towers
	pos, ok := m.pop.towerPos[home]
	if !ok {
		return towers[s.Intn(len(towers))].ID
	}
	if len(towers) < 2 {
		return home
	}
	idx := s.Intn(len(towers) - 1)
	if idx >= pos {
		idx++
	}
	return towers[idx].ID
}
