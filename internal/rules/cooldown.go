// Package rules evaluates per-association donation rules: the household
// cooldown clock and the selection of which active rules apply.
package rules

import "time"

const dayMillis = 86_400_000

// ElapsedDays returns whole days between last and now, truncated at day
// granularity (floor of elapsed milliseconds / 86,400,000). Negative when
// last is in the future.
func ElapsedDays(last, now time.Time) int {
	ms := now.Sub(last).Milliseconds()
	if ms < 0 {
		return int((ms - dayMillis + 1) / dayMillis)
	}
	return int(ms / dayMillis)
}

// IsEligible decides whether a family may receive aid again. A family that
// never received aid is always eligible; otherwise eligibility requires at
// least cooldownDays whole days since the last donation.
func IsEligible(lastDonation *time.Time, cooldownDays int, now time.Time) bool {
	if lastDonation == nil {
		return true
	}
	return ElapsedDays(*lastDonation, now) >= cooldownDays
}

// DaysRemaining returns how many whole days are left on the cooldown clock.
// Zero when the cooldown has already elapsed.
func DaysRemaining(lastDonation time.Time, cooldownDays int, now time.Time) int {
	remaining := cooldownDays - ElapsedDays(lastDonation, now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// CooldownEnd is the instant the cooldown window closes.
func CooldownEnd(lastDonation time.Time, cooldownDays int) time.Time {
	return lastDonation.Add(time.Duration(cooldownDays) * 24 * time.Hour)
}
