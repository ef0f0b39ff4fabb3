// Package payment turns a plan purchase into a quota grant. No money moves;
// Simulator stands in for a checkout.
package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"gopan-drive/internal/logger"
	"gopan-drive/internal/quota"
)

// ErrNotPurchasable is returned for the free tier.
var ErrNotPurchasable = errors.New("plan cannot be purchased")

// Purchaser completes a purchase and returns the grant to apply.
type Purchaser interface {
	Purchase(ctx context.Context, planID quota.Tier) (quota.Grant, error)
}

// PurchaserFunc adapts a function to Purchaser.
type PurchaserFunc func(ctx context.Context, planID quota.Tier) (quota.Grant, error)

func (f PurchaserFunc) Purchase(ctx context.Context, planID quota.Tier) (quota.Grant, error) {
	return f(ctx, planID)
}

// Simulator approves every purchase of a paid plan after Delay.
type Simulator struct {
	Policy *quota.Policy
	Delay  time.Duration
}

func NewSimulator(policy *quota.Policy, delay time.Duration) *Simulator {
	return &Simulator{Policy: policy, Delay: delay}
}

func (s *Simulator) Purchase(ctx context.Context, planID quota.Tier) (quota.Grant, error) {
	if planID == quota.TierFree {
		return quota.Grant{}, fmt.Errorf("%w: %q", ErrNotPurchasable, planID)
	}
	grant, err := s.Policy.GrantFor(planID)
	if err != nil {
		return quota.Grant{}, err
	}

	if s.Delay > 0 {
		t := time.NewTimer(s.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return quota.Grant{}, ctx.Err()
		case <-t.C:
		}
	}

	logger.Info("purchase approved",
		zap.String("plan", string(planID)),
		zap.Int64("quota_limit", grant.Limit))
	return grant, nil
}
