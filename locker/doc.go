// Package locker implements the custodial asset ledger: per-owner ledgers
// of asset balances, optimistic-concurrency deposit and withdraw engines,
// the four-way custody routing classification, and the batch coordinator
// with its sequence-number replay guard.
//
// The package holds no locks and performs no I/O of its own beyond the
// custody capability ports it is handed; the surrounding execution
// environment is expected to serialize requests touching the same ledger
// and to commit or discard each request's effects atomically. Concurrency
// safety across requests comes from the expected-prior-balance and
// expected-sequence guards: a request built on stale state is rejected,
// never silently stacked.
package locker
