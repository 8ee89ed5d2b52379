// Package core contains the canonical arcade domain entities, store
// contracts, configuration, and error taxonomy. Leaf packages (token,
// ledger, session, continues, payments) depend on core; core must not
// depend on storage or transport adapters.
package core
