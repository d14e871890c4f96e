// Package consensus groups findings from independent reviewers into
// consolidated findings and ranks them by cross-reviewer agreement.
//
// Grouping is greedy and online: each finding is compared with the current
// representative of every existing group and joins the most similar one when
// the similarity reaches the policy threshold. Groups never split, and a
// merged representative can attract findings that would not have matched any
// single original member.
package consensus
