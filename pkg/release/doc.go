/*
Package release resolves platform release tags to archives, downloads them
and verifies their integrity before anything else in the pipeline touches
them.

# Tags

Release tags have the form vMAJOR.MINOR.PATCH[-prerelease]. ParseTag
rejects malformed tags with an InvalidArgument error before any network
access. The release family (vMAJOR.MINOR) appears both in the download URL
and in the cache layout:

	<baseURL>/v0.42/build-v0.42.5.zip
	<baseURL>/v0.42/build-v0.42.5.sha384

	<cacheDir>/v0.42/build-v0.42.5.zip
	<cacheDir>/v0.42/build-v0.42.5.sha384

Satisfies checks a tag against a semver constraint, which the pipeline uses
to refuse releases older than the supported range.

# Fetching

Fetcher.Fetch runs, in order:

 1. Tag and destination validation (no network).
 2. Cache check: an archive already on disk is reused only when it still
    matches its checksum file. WithForce disables reuse.
 3. HEAD probe. A 404 becomes ResourceNotFound; any other failure becomes
    RemoteOperation.
 4. Streamed download of the checksum file and the archive.
 5. Digest comparison against the first whitespace token of the checksum
    file (SHA-384 unless WithAlgorithm says otherwise).

A mismatch returns a DataIntegrity error wrapping a *ChecksumError with the
expected and computed digests. The archive stays on disk for inspection.

Nothing in this package retries. Whether and when to try again is up to the
caller.

# Unpacking

Unpack extracts a verified archive into a staging directory and refuses
entries that would land outside it.
*/
package release
