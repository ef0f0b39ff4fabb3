// Package quota maps subscription tiers to storage limits.
package quota

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"
)

// Tier identifies a subscription level.
type Tier string

const (
	TierFree    Tier = "free"
	TierMonthly Tier = "monthly"
	TierYearly  Tier = "yearly"
	TierSVIP    Tier = "svip"
)

const (
	GiB int64 = 1 << 30
	TiB int64 = 1 << 40
)

// minPlans is the free tier plus three paid ones.
const minPlans = 4

var (
	ErrUnknownTier = errors.New("unknown tier")
	ErrBadPolicy   = errors.New("invalid quota policy")
)

// Plan describes one purchasable tier.
type Plan struct {
	ID       Tier     `json:"id" mapstructure:"id"`
	Name     string   `json:"name" mapstructure:"name"`
	Price    string   `json:"price" mapstructure:"price"`
	Period   string   `json:"period" mapstructure:"period"`
	Limit    int64    `json:"limit" mapstructure:"limit"`
	Features []string `json:"features" mapstructure:"features"`
}

// LimitHuman renders the limit in binary units ("2.0 TiB").
func (p Plan) LimitHuman() string {
	return humanize.IBytes(uint64(p.Limit))
}

// Grant is what a completed purchase hands to a drive: the tier that is now
// active and the byte limit that goes with it.
type Grant struct {
	Tier        Tier   `json:"tier"`
	Limit       int64  `json:"quota_limit"`
	DisplayName string `json:"display_name"`
}

// Policy is an immutable tier table. The free tier is mandatory.
type Policy struct {
	plans map[Tier]Plan
	order []Tier
}

// DefaultPlans returns the stock tier table.
func DefaultPlans() []Plan {
	return []Plan{
		{ID: TierFree, Name: "Free", Limit: 10 * GiB},
		{ID: TierMonthly, Name: "Monthly", Price: "19", Period: "/month", Limit: 2 * TiB,
			Features: []string{"2TB storage", "faster downloads", "variable speed video"}},
		{ID: TierYearly, Name: "Yearly", Price: "198", Period: "/year", Limit: 5 * TiB,
			Features: []string{"5TB storage", "faster transfers", "variable speed video", "large file upload"}},
		{ID: TierSVIP, Name: "Super VIP", Price: "298", Period: "/year", Limit: 10 * TiB,
			Features: []string{"10TB storage", "unthrottled transfers", "unlimited AI assistant", "priority support"}},
	}
}

// NewPolicy validates plans and builds a Policy. Limits must be positive and
// strictly increasing from the free tier upwards.
func NewPolicy(plans []Plan) (*Policy, error) {
	if len(plans) == 0 {
		plans = DefaultPlans()
	}
	p := &Policy{plans: make(map[Tier]Plan, len(plans))}
	for _, plan := range plans {
		if plan.ID == "" {
			return nil, fmt.Errorf("%w: plan without id", ErrBadPolicy)
		}
		if plan.Limit <= 0 {
			return nil, fmt.Errorf("%w: plan %q has non-positive limit", ErrBadPolicy, plan.ID)
		}
		if _, dup := p.plans[plan.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate plan %q", ErrBadPolicy, plan.ID)
		}
		p.plans[plan.ID] = plan
		p.order = append(p.order, plan.ID)
	}
	if _, ok := p.plans[TierFree]; !ok {
		return nil, fmt.Errorf("%w: missing %q tier", ErrBadPolicy, TierFree)
	}
	if len(p.order) < minPlans {
		return nil, fmt.Errorf("%w: need %q and at least %d paid tiers, got %d plans", ErrBadPolicy, TierFree, minPlans-1, len(p.order))
	}

	sort.SliceStable(p.order, func(i, j int) bool {
		return p.plans[p.order[i]].Limit < p.plans[p.order[j]].Limit
	})
	if p.order[0] != TierFree {
		return nil, fmt.Errorf("%w: %q must have the smallest limit", ErrBadPolicy, TierFree)
	}
	for i := 1; i < len(p.order); i++ {
		if p.plans[p.order[i]].Limit == p.plans[p.order[i-1]].Limit {
			return nil, fmt.Errorf("%w: %q and %q share a limit", ErrBadPolicy, p.order[i-1], p.order[i])
		}
	}
	return p, nil
}

// MustDefault returns the stock policy.
func MustDefault() *Policy {
	p, err := NewPolicy(DefaultPlans())
	if err != nil {
		panic(err)
	}
	return p
}

// LimitFor returns the byte limit of tier.
func (p *Policy) LimitFor(tier Tier) (int64, error) {
	plan, ok := p.plans[tier]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownTier, tier)
	}
	return plan.Limit, nil
}

// Plan looks up a tier.
func (p *Policy) Plan(tier Tier) (Plan, bool) {
	plan, ok := p.plans[tier]
	return plan, ok
}

// Plans returns every plan, smallest limit first.
func (p *Policy) Plans() []Plan {
	out := make([]Plan, 0, len(p.order))
	for _, t := range p.order {
		out = append(out, p.plans[t])
	}
	return out
}

// PaidPlans returns every plan except the free tier.
func (p *Policy) PaidPlans() []Plan {
	all := p.Plans()
	return all[1:]
}

// FreeGrant is the grant every new account starts with.
func (p *Policy) FreeGrant() Grant {
	plan := p.plans[TierFree]
	return Grant{Tier: TierFree, Limit: plan.Limit, DisplayName: plan.Name}
}

// GrantFor builds the grant for a tier.
func (p *Policy) GrantFor(tier Tier) (Grant, error) {
	plan, ok := p.plans[tier]
	if !ok {
		return Grant{}, fmt.Errorf("%w: %q", ErrUnknownTier, tier)
	}
	return Grant{Tier: plan.ID, Limit: plan.Limit, DisplayName: plan.Name}, nil
}
