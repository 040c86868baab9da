package addressbook

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/cuemby/solo/pkg/errdefs"
	"github.com/cuemby/solo/pkg/types"
)

const (
	// DefaultAppName is the application jar launched by the node
	DefaultAppName = "HederaNode.jar"
	// DefaultGossipPort is the internal and external gossip port
	DefaultGossipPort = 50111
	// DefaultStake is the weight given to nodes without an override
	DefaultStake uint64 = 1
	// DefaultNamespace is used for host names when Options.Namespace is empty
	DefaultNamespace = "default"
)

// Node IDs end up in DNS names and file names
var nodeIDPattern = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)

// Options tune the rendered address book. The zero value is usable.
type Options struct {
	Namespace    string
	AppName      string
	InternalPort int
	ExternalPort int
	Stakes       map[string]uint64
}

func (o Options) withDefaults() Options {
	if o.Namespace == "" {
		o.Namespace = DefaultNamespace
	}
	if o.AppName == "" {
		o.AppName = DefaultAppName
	}
	if o.InternalPort == 0 {
		o.InternalPort = DefaultGossipPort
	}
	if o.ExternalPort == 0 {
		o.ExternalPort = DefaultGossipPort
	}
	return o
}

// InternalHost is the pod-level DNS name of a node's gossip endpoint
func InternalHost(namespace, nodeID string) string {
	return fmt.Sprintf("network-%s-0.network-%s.%s.svc.cluster.local", nodeID, nodeID, namespace)
}

// ExternalHost is the service DNS name of a node
func ExternalHost(namespace, nodeID string) string {
	return fmt.Sprintf("network-%s-svc.%s.svc.cluster.local", nodeID, namespace)
}

// Entries returns the typed address book entries in input order
func Entries(nodeIDs []string, opts Options) ([]types.AddressBookEntry, error) {
	const op = "addressbook.Entries"

	if len(nodeIDs) == 0 {
		return nil, errdefs.Missing(op, "node ids")
	}

	opts = opts.withDefaults()
	if opts.InternalPort < 0 || opts.InternalPort > 65535 || opts.ExternalPort < 0 || opts.ExternalPort > 65535 {
		return nil, errdefs.New(errdefs.KindInvalidArgument, op, "gossip ports must be within 1-65535")
	}

	seen := make(map[string]struct{}, len(nodeIDs))
	entries := make([]types.AddressBookEntry, 0, len(nodeIDs))
	for i, id := range nodeIDs {
		if id == "" {
			return nil, errdefs.New(errdefs.KindMissingArgument, op, "node id at index %d is empty", i)
		}
		if !nodeIDPattern.MatchString(id) {
			return nil, errdefs.New(errdefs.KindInvalidArgument, op, "invalid node id %q", id)
		}
		if _, dup := seen[id]; dup {
			return nil, errdefs.New(errdefs.KindInvalidArgument, op, "duplicate node id %q", id)
		}
		seen[id] = struct{}{}

		stake := DefaultStake
		if s, ok := opts.Stakes[id]; ok {
			stake = s
		}

		entries = append(entries, types.AddressBookEntry{
			Index:        i,
			NodeID:       id,
			Name:         id,
			Stake:        stake,
			InternalHost: InternalHost(opts.Namespace, id),
			InternalPort: opts.InternalPort,
			ExternalHost: ExternalHost(opts.Namespace, id),
			ExternalPort: opts.ExternalPort,
		})
	}

	for id := range opts.Stakes {
		if _, ok := seen[id]; !ok {
			return nil, errdefs.New(errdefs.KindInvalidArgument, op, "stake given for unknown node %q", id)
		}
	}

	return entries, nil
}

// Render returns the address book lines for nodeIDs in the given order
func Render(nodeIDs []string, chainID string, opts Options) ([]string, error) {
	const op = "addressbook.Render"

	if chainID == "" {
		return nil, errdefs.Missing(op, "chain id")
	}

	entries, err := Entries(nodeIDs, opts)
	if err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	lines := make([]string, 0, len(entries)+3)
	lines = append(lines,
		fmt.Sprintf("swirld, %s", chainID),
		fmt.Sprintf("app, %s", opts.AppName),
	)
	for _, e := range entries {
		lines = append(lines, formatEntry(e))
	}
	lines = append(lines, fmt.Sprintf("nextNodeId, %d", len(entries)))

	return lines, nil
}

// Text joins rendered lines the way they are written to disk
func Text(lines []string) string {
	return strings.Join(lines, "\n")
}

// Write stores lines at path, joined by newlines without a trailing newline
func Write(path string, lines []string) error {
	if path == "" {
		return errdefs.Missing("addressbook.Write", "path")
	}
	if err := os.WriteFile(path, []byte(Text(lines)), 0644); err != nil {
		return fmt.Errorf("failed to write address book %s: %w", path, err)
	}
	return nil
}

func formatEntry(e types.AddressBookEntry) string {
	return fmt.Sprintf("address, %d, %s, %s, %d, %s, %d, %s, %d",
		e.Index, e.NodeID, e.Name, e.Stake,
		e.InternalHost, e.InternalPort,
		e.ExternalHost, e.ExternalPort)
}
