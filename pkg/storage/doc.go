/*
Package storage keeps the local provisioning state in a BoltDB file
(<stateDir>/solo.db).

Three buckets are kept, each holding JSON-encoded records:

	artifacts     verified release archives, keyed by tag
	runs          provisioning run audit records, keyed by run ID
	deployments   chart releases as last observed, keyed by namespace/release

None of these records drive decisions on their own. The fetcher re-verifies
a cached archive before reusing it and the chart manager re-queries the
cluster before every mutating operation. The store answers "what did this
workstation do, and when".

BoltDB holds an exclusive file lock while the database is open, so two solo
processes pointed at the same state directory are serialized: the second
waits up to five seconds for the lock and then fails.

Lookups of missing keys return a ResourceNotFound error from pkg/errdefs.
*/
package storage
