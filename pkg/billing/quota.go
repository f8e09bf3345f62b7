// Package billing implements C4: atomic per-tenant quota reservation against
// an append-only usage-event ledger.
//
// Grounded on ent/schema/subscription.go and ent/schema/usageevent.go's own
// doc comments (backend/packages/billing/models/domain/{subscription,usage}.py,
// original_source) and on SPEC_FULL.md §4.4's reserve protocol.
package billing

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/corpusforge/platform/ent"
	"github.com/corpusforge/platform/ent/subscription"
	"github.com/corpusforge/platform/ent/usageevent"
	"github.com/corpusforge/platform/pkg/config"
)

// ErrNoAccess is returned when the tenant's subscription status doesn't
// grant access (suspended or cancelled).
var ErrNoAccess = errors.New("billing: subscription does not grant access")

// QuotaCheck is the outcome of a quota evaluation, independent of whether
// the caller is only checking or actually reserving.
type QuotaCheck struct {
	Allowed                bool
	Metric                 string
	CurrentUsage           int64
	Limit                  int64
	Remaining              int64
	PercentageUsed         float64
	WarningThresholdReached bool
	PeriodEnd              string
}

// Message renders a human-readable summary of the check, a pure function of
// its fields.
func (q QuotaCheck) Message() string {
	if !q.Allowed {
		return fmt.Sprintf("%s quota exceeded: %d/%d used this period (resets %s)", q.Metric, q.CurrentUsage, q.Limit, q.PeriodEnd)
	}
	if q.WarningThresholdReached {
		return fmt.Sprintf("%s usage at %.0f%% of quota (%d/%d)", q.Metric, q.PercentageUsed, q.CurrentUsage, q.Limit)
	}
	return fmt.Sprintf("%s usage %d/%d", q.Metric, q.CurrentUsage, q.Limit)
}

// ReserveResult is returned by Reserve.
type ReserveResult struct {
	QuotaCheck
	UsageEventID int
}

// Gate enforces per-tenant monthly quota ceilings and appends to the usage
// ledger.
type Gate struct {
	client     *ent.Client
	tierLimits map[string]config.TierLimits
	subCache   *lru.Cache[int, *ent.Subscription]
}

// NewGate builds a Gate. tierLimits is typically config.Config.TierLimits.
func NewGate(client *ent.Client, tierLimits map[string]config.TierLimits) (*Gate, error) {
	cache, err := lru.New[int, *ent.Subscription](512)
	if err != nil {
		return nil, fmt.Errorf("billing: building subscription cache: %w", err)
	}
	return &Gate{client: client, tierLimits: tierLimits, subCache: cache}, nil
}

// InvalidateSubscription evicts a cached subscription, e.g. after a tier or
// status change — the hot read path never serves stale access decisions
// past the next call.
func (g *Gate) InvalidateSubscription(companyID int) {
	g.subCache.Remove(companyID)
}

func (g *Gate) loadSubscription(ctx context.Context, companyID int) (*ent.Subscription, error) {
	if sub, ok := g.subCache.Get(companyID); ok {
		return sub, nil
	}
	sub, err := g.client.Subscription.Query().
		Where(subscription.CompanyID(companyID), subscription.Deleted(false)).
		Only(ctx)
	if err != nil {
		return nil, fmt.Errorf("billing: loading subscription: %w", err)
	}
	g.subCache.Add(companyID, sub)
	return sub, nil
}

func hasAccess(status subscription.Status) bool {
	return status == subscription.StatusActive || status == subscription.StatusPastDue
}

func limitFor(limits config.TierLimits, eventType usageevent.EventType) int64 {
	switch eventType {
	case usageevent.EventTypeCellOperation:
		return int64(limits.CellOperations)
	case usageevent.EventTypeAgenticQa:
		return int64(limits.AgenticQA)
	case usageevent.EventTypeWorkflow:
		return int64(limits.Workflows)
	case usageevent.EventTypeStorageUpload:
		return limits.StorageBytes
	case usageevent.EventTypeAgenticChunking:
		return int64(limits.AgenticChunking)
	default:
		return 0
	}
}

// advisoryLockKey derives a stable per-(company,event_type) lock key so
// concurrent reservations for the same metric serialize without a
// table-level lock.
func advisoryLockKey(companyID int, eventType usageevent.EventType) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(fmt.Sprintf("%d:%s", companyID, eventType)))
	return int64(h.Sum64())
}

// Reserve executes the C4 reserve protocol: load subscription, check
// access, sum the ledger within the subscription's current period, and —
// only if the requested quantity fits within the tier limit — append a new
// UsageEvent. The whole check-then-append sequence runs inside one
// transaction serialized per (company_id, event_type) via
// pg_advisory_xact_lock, so two concurrent reservations can never together
// exceed the limit.
func (g *Gate) Reserve(ctx context.Context, companyID int, eventType usageevent.EventType, quantity int, fileSizeBytes *int64) (*ReserveResult, error) {
	sub, err := g.loadSubscription(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if !hasAccess(sub.Status) {
		return nil, ErrNoAccess
	}

	limits, ok := g.tierLimits[string(sub.Tier)]
	if !ok {
		return nil, fmt.Errorf("billing: no tier limits configured for tier %q", sub.Tier)
	}
	limit := limitFor(limits, eventType)

	tx, err := g.client.Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("billing: starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var lockDiscard interface{}
	if err := tx.Client().Driver().Exec(ctx, "SELECT pg_advisory_xact_lock($1)", []interface{}{advisoryLockKey(companyID, eventType)}, &lockDiscard); err != nil {
		return nil, fmt.Errorf("billing: acquiring reservation lock: %w", err)
	}

	q := tx.UsageEvent.Query().Where(
		usageevent.CompanyID(companyID),
		usageevent.EventTypeEQ(eventType),
		usageevent.CreatedAtGTE(sub.PeriodStart),
		usageevent.CreatedAtLT(sub.PeriodEnd),
	)

	var current int64
	if eventType == usageevent.EventTypeStorageUpload {
		events, err := q.All(ctx)
		if err != nil {
			return nil, fmt.Errorf("billing: summing storage usage: %w", err)
		}
		for _, e := range events {
			if e.FileSizeBytes != nil {
				current += *e.FileSizeBytes
			}
		}
	} else {
		sum, err := q.Aggregate(ent.Sum(usageevent.FieldQuantity)).Int(ctx)
		if err != nil && !ent.IsNotFound(err) {
			return nil, fmt.Errorf("billing: summing usage: %w", err)
		}
		current = int64(sum)
	}

	requested := int64(quantity)
	if eventType == usageevent.EventTypeStorageUpload && fileSizeBytes != nil {
		requested = *fileSizeBytes
	}

	check := QuotaCheck{
		Metric:       string(eventType),
		CurrentUsage: current,
		Limit:        limit,
		PeriodEnd:    sub.PeriodEnd.Format("2006-01-02"),
	}

	if current+requested > limit {
		check.Allowed = false
		check.Remaining = limit - current
		if check.Remaining < 0 {
			check.Remaining = 0
		}
		if limit > 0 {
			check.PercentageUsed = float64(current) / float64(limit) * 100
		}
		return &ReserveResult{QuotaCheck: check}, nil
	}

	create := tx.UsageEvent.Create().
		SetCompanyID(companyID).
		SetEventType(eventType).
		SetQuantity(quantity)
	if fileSizeBytes != nil {
		create = create.SetFileSizeBytes(*fileSizeBytes)
	}
	event, err := create.Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("billing: appending usage event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("billing: committing reservation: %w", err)
	}

	newTotal := current + requested
	check.Allowed = true
	check.Remaining = limit - newTotal
	if limit > 0 {
		check.PercentageUsed = float64(newTotal) / float64(limit) * 100
	}
	check.WarningThresholdReached = check.PercentageUsed >= 80

	return &ReserveResult{QuotaCheck: check, UsageEventID: event.ID}, nil
}
