/*
Package staging assembles the files a consensus node needs and places them
inside its pod.

Prepare builds a fresh bundle under <stagingDir>/<uuid>:

	build/                    unpacked release (data/apps, data/lib)
	templates/                copied configuration templates
	config.txt                rendered address book
	keys/s-*-<node>.pfx       signing containers
	keys/a-*-<node>.pfx       gossip containers
	hedera-<node>.key|.crt    TLS pair

CopyInto mirrors one node's share of a bundle into its pod below AppRoot.
The app root, data/keys and data/config directories are created first, then
the release archive is copied and extracted with unzip, then templates,
config.txt, key containers and the TLS pair (renamed hedera.key and
hedera.crt) are copied. Every argument is checked before the first remote
call.
*/
package staging
