// Package voteadmission implements the Vote Admission module inside the
// trust-safety context.
//
// The module owns public vote intake: each attempt passes through a fixed
// sequence of fraud rules (duplicate, velocity, bot-score, suspicion
// accumulation, flag threshold) before it is appended to the vote ledger.
// Admitted-but-suspicious votes are flagged for moderator review rather
// than rejected. Leaderboards, voting stats, and voter history are read
// models over the same ledger. Business rules live in application/domain
// layers and infrastructure concerns sit behind ports and adapters.
package voteadmission
