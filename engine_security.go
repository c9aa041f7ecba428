package authengine

import (
	"context"

	"github.com/dmarquespt/authengine/store"
)

// attemptReasonBlocked marks attempts rejected by the block flag. They are
// recorded but must not feed the failure counter, otherwise a blocked
// account could never recover.
const attemptReasonBlocked = "blocked"

// Attempt is one credential-check outcome fed to the brute-force gate.
type Attempt struct {
	Email     string
	IP        string
	UserAgent string
	Success   bool
	UserID    *uint
	Reason    string
}

// RecordLoginAttempt appends the durable attempt row and drives the
// fixed-window failure counter: failures increment it, reaching the
// threshold sets the temporary block flag, a success clears it. The block
// TTL is independent of the counting window. A fixed window admits bursts
// of up to twice the threshold across a boundary, which is acceptable for
// this throttle.
func (e *Engine) RecordLoginAttempt(ctx context.Context, a Attempt) error {
	if err := e.durable.Attempts().Append(ctx, &store.LoginAttempt{
		Email:     a.Email,
		IP:        a.IP,
		UserAgent: a.UserAgent,
		Success:   a.Success,
		UserID:    a.UserID,
		Reason:    a.Reason,
	}); err != nil {
		return err
	}

	if a.Email == "" {
		return nil
	}

	if a.Success {
		return e.fast.ClearLoginFailures(ctx, a.Email)
	}
	if a.Reason == attemptReasonBlocked {
		return nil
	}

	count, err := e.fast.RecordLoginFailure(ctx, a.Email, e.config.Security.BruteForceWindow)
	if err != nil {
		return err
	}
	if count >= e.config.Security.BruteForceThreshold {
		if err := e.fast.BlockEmail(ctx, a.Email, e.config.Security.BlockDuration); err != nil {
			return err
		}
		e.metrics.inc(MetricBruteForceBlock)
		e.recordAudit(ctx, a.UserID, a.IP, BruteForceMeta{Email: a.Email, Attempts: count})
	}
	return nil
}

// IsEmailBlocked reports whether the temporary block flag is set. Callers
// must check this before validating credentials and record a blocked
// attempt, not a failed one, when it is.
func (e *Engine) IsEmailBlocked(ctx context.Context, email string) (bool, error) {
	return e.fast.IsEmailBlocked(ctx, email)
}

// checkSuspiciousActivity tracks the distinct regions a user logs in from
// within a sliding window and rejects the login once the threshold is
// reached. A heuristic, not proof of compromise: mobile users crossing
// carrier regions will trip it, which is why it is off by default.
func (e *Engine) checkSuspiciousActivity(ctx context.Context, user *store.User, ip string) error {
	if !e.config.Security.SuspiciousRegionCheck || e.regions == nil {
		return nil
	}

	region, ok := e.regions.Region(ctx, ip)
	if !ok || region == "" {
		return nil
	}

	regions, err := e.fast.TouchRegion(ctx, user.ID, region, e.config.Security.RegionWindow)
	if err != nil {
		return err
	}
	if len(regions) >= e.config.Security.SuspiciousRegionThreshold {
		e.metrics.inc(MetricSuspiciousActivity)
		e.recordAudit(ctx, &user.ID, ip, SuspiciousMeta{Region: region, Regions: regions})
		return ErrSuspiciousActivity
	}
	return nil
}
