package consensus

import (
	"errors"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Default thresholds of the Proof of Cooperative Stake protocol. They are
// process-wide configuration, not negotiated on-chain.
const (
	DefaultStakeThreshold       = 100.0
	DefaultCooperationThreshold = 50

	initialCooperationScore = 100

	// activity weighting decays with a 24-hour scale
	activityDecaySeconds = 24 * 60 * 60
)

// ErrNotValidator is returned when a block producer fails the eligibility
// check. It is a consensus rejection, distinct from network and structural
// failures.
var ErrNotValidator = errors.New("producer is not an eligible validator")

// Validator is the engine's record of one staked participant. It is owned
// exclusively by the PoCoS engine; other components refer to validators by
// DID only.
type Validator struct {
	DID              string        `json:"did"`
	Stake            float64       `json:"stake"`
	CooperationScore int           `json:"cooperation_score"`
	BlocksCreated    int           `json:"blocks_created"`
	LastActiveTime   time.Time     `json:"last_active_time"`
	TotalUptime      time.Duration `json:"total_uptime"`
}

// PoCoS is the Proof of Cooperative Stake engine: a registry of validators
// with stake-and-reputation-weighted producer selection. Eligibility is
// driven by two thresholds; reputation is recomputed after every block a
// validator produces.
type PoCoS struct {
	sync.RWMutex

	validators           map[string]*Validator
	stakeThreshold       float64
	cooperationThreshold int
	totalBlocksCreated   int

	rng    *rand.Rand
	now    func() time.Time
	logger *logrus.Entry
}

// NewPoCoS returns an engine with the given thresholds and an empty registry.
func NewPoCoS(stakeThreshold float64, cooperationThreshold int, logger *logrus.Entry) *PoCoS {
	return &PoCoS{
		validators:           make(map[string]*Validator),
		stakeThreshold:       stakeThreshold,
		cooperationThreshold: cooperationThreshold,
		rng:                  rand.New(rand.NewSource(time.Now().UnixNano())),
		now:                  time.Now,
		logger:               logger,
	}
}

// AddValidator registers a validator. Registration is rejected when the stake
// is below the stake threshold or the DID is already registered. A fresh
// validator starts with a full cooperation score.
func (p *PoCoS) AddValidator(did string, stake float64) bool {
	if stake < p.stakeThreshold {
		return false
	}

	p.Lock()
	defer p.Unlock()

	if _, ok := p.validators[did]; ok {
		return false
	}

	p.validators[did] = &Validator{
		DID:              did,
		Stake:            stake,
		CooperationScore: initialCooperationScore,
		LastActiveTime:   p.now(),
	}

	p.logger.WithFields(logrus.Fields{
		"did":   did,
		"stake": stake,
	}).Debug("Registered validator")

	return true
}

// RemoveValidator deregisters a validator.
func (p *PoCoS) RemoveValidator(did string) bool {
	p.Lock()
	defer p.Unlock()

	if _, ok := p.validators[did]; !ok {
		return false
	}

	delete(p.validators, did)

	return true
}

// UpdateStake changes a registered validator's stake. Lowering it below the
// threshold makes the validator ineligible without deregistering it.
func (p *PoCoS) UpdateStake(did string, stake float64) bool {
	p.Lock()
	defer p.Unlock()

	v, ok := p.validators[did]
	if !ok {
		return false
	}

	v.Stake = stake

	return true
}

// IsValidator reports whether the DID is registered and meets both the stake
// and cooperation thresholds.
func (p *PoCoS) IsValidator(did string) bool {
	p.RLock()
	defer p.RUnlock()

	return p.isEligible(did)
}

// isEligible. Lock held by caller.
func (p *PoCoS) isEligible(did string) bool {
	v, ok := p.validators[did]
	if !ok {
		return false
	}
	return v.Stake >= p.stakeThreshold && v.CooperationScore >= p.cooperationThreshold
}

// SelectValidator picks a producer among eligible validators by weighted
// random sampling. The eligible set and weights are snapshotted under the
// lock before drawing, and walked in DID order, so a concurrent registry
// mutation cannot skew the draw against a stale total.
func (p *PoCoS) SelectValidator() (string, bool) {
	p.Lock()
	defer p.Unlock()

	eligible := []string{}
	for did := range p.validators {
		if p.isEligible(did) {
			eligible = append(eligible, did)
		}
	}

	if len(eligible) == 0 {
		return "", false
	}

	sort.Strings(eligible)

	weights := make([]float64, len(eligible))
	totalWeight := 0.0
	for i, did := range eligible {
		weights[i] = p.weight(did)
		totalWeight += weights[i]
	}

	selection := p.rng.Float64() * totalWeight

	currentWeight := 0.0
	for i, did := range eligible {
		currentWeight += weights[i]
		if currentWeight > selection {
			return did, true
		}
	}

	// floating point accumulation can land exactly on the total
	return eligible[len(eligible)-1], true
}

// weight is stake x cooperation score x activity weight. Lock held by caller.
func (p *PoCoS) weight(did string) float64 {
	v := p.validators[did]
	return v.Stake * float64(v.CooperationScore) * p.activityWeight(v)
}

// activityWeight favours recently-active validators with long accumulated
// uptime. Staleness is penalized by exponential decay on a 24-hour scale.
func (p *PoCoS) activityWeight(v *Validator) float64 {
	sinceActive := p.now().Sub(v.LastActiveTime).Seconds()
	decay := math.Exp(-sinceActive / activityDecaySeconds)
	return 1 + (v.TotalUptime.Seconds()/activityDecaySeconds)*decay
}

// UpdateValidatorMetrics is called once per block the validator produced. It
// updates the production counters and uptime, then recomputes the cooperation
// score as actual production relative to the validator's stake-proportional
// expectation, clamped to [0,100].
func (p *PoCoS) UpdateValidatorMetrics(did string) bool {
	p.Lock()
	defer p.Unlock()

	v, ok := p.validators[did]
	if !ok {
		return false
	}

	now := p.now()

	v.BlocksCreated++
	p.totalBlocksCreated++

	v.TotalUptime += now.Sub(v.LastActiveTime)
	v.LastActiveTime = now

	totalStake := 0.0
	for _, other := range p.validators {
		totalStake += other.Stake
	}

	expectedBlocks := float64(p.totalBlocksCreated) * (v.Stake / totalStake)
	cooperationRatio := float64(v.BlocksCreated) / math.Max(expectedBlocks, 1)
	v.CooperationScore = clampScore(int(math.Round(cooperationRatio * 100)))

	p.logger.WithFields(logrus.Fields{
		"did":               did,
		"blocks_created":    v.BlocksCreated,
		"cooperation_score": v.CooperationScore,
	}).Debug("Updated validator metrics")

	return true
}

// ValidatorInfo returns a copy of a validator record.
func (p *PoCoS) ValidatorInfo(did string) (Validator, bool) {
	p.RLock()
	defer p.RUnlock()

	v, ok := p.validators[did]
	if !ok {
		return Validator{}, false
	}

	return *v, true
}

// Validators returns copies of all registered validators, sorted by DID.
func (p *PoCoS) Validators() []Validator {
	p.RLock()
	defer p.RUnlock()

	res := make([]Validator, 0, len(p.validators))
	for _, v := range p.validators {
		res = append(res, *v)
	}

	sort.Slice(res, func(i, j int) bool { return res[i].DID < res[j].DID })

	return res
}

// TotalBlocksCreated returns the network-wide production counter.
func (p *PoCoS) TotalBlocksCreated() int {
	p.RLock()
	defer p.RUnlock()

	return p.totalBlocksCreated
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
