// Package contact enforces the daily contact-reveal quota.
//
// A viewer may reveal at most MaxViews distinct targets per calendar day in
// their own timezone. Revealing a target already charged today is free and
// returns the payload captured at charge time. Charging is a single atomic
// ledger operation so concurrent reveals never overshoot the quota.
package contact
