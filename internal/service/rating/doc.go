// Package rating implements the post-completion rating ledger: one rating
// per (request, rater), only between the two participants of a completed
// request, with a cached per-user average.
package rating
