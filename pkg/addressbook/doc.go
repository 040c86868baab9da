/*
Package addressbook renders the network address book (config.txt) that every
consensus node reads at startup.

The rendered text is a pure function of the ordered node IDs, the chain ID
and Options. Rendering never touches the filesystem; Write is a separate
step. For three nodes in namespace solo:

	swirld, 123
	app, HederaNode.jar
	address, 0, node0, node0, 1, network-node0-0.network-node0.solo.svc.cluster.local, 50111, network-node0-svc.solo.svc.cluster.local, 50111
	address, 1, node1, node1, 1, ...
	address, 2, node2, node2, 1, ...
	nextNodeId, 3

Node order is significant and preserved exactly as given. Lines are joined
with a single newline and the file has no trailing newline.
*/
package addressbook
