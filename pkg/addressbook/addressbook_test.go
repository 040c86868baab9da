package addressbook

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/solo/pkg/errdefs"
)

func TestRenderThreeNodes(t *testing.T) {
	lines, err := Render([]string{"node0", "node1", "node2"}, "123", Options{Namespace: "solo"})
	require.NoError(t, err)

	require.Len(t, lines, 6)
	assert.Equal(t, "swirld, 123", lines[0])
	assert.Equal(t, "app, HederaNode.jar", lines[1])
	assert.Equal(t,
		"address, 0, node0, node0, 1, network-node0-0.network-node0.solo.svc.cluster.local, 50111, network-node0-svc.solo.svc.cluster.local, 50111",
		lines[2])
	assert.Contains(t, lines[3], "address, 1, node1, node1, 1, ")
	assert.Contains(t, lines[4], "address, 2, node2, node2, 1, ")
	assert.Equal(t, "nextNodeId, 3", lines[5])
}

func TestRenderIsDeterministic(t *testing.T) {
	ids := []string{"node2", "node0", "node1"}

	first, err := Render(ids, "298", Options{Namespace: "ns"})
	require.NoError(t, err)
	second, err := Render(ids, "298", Options{Namespace: "ns"})
	require.NoError(t, err)

	assert.Equal(t, Text(first), Text(second))
}

func TestRenderPreservesInputOrder(t *testing.T) {
	lines, err := Render([]string{"node2", "node0"}, "1", Options{})
	require.NoError(t, err)

	assert.Contains(t, lines[2], "address, 0, node2, node2")
	assert.Contains(t, lines[3], "address, 1, node0, node0")
	assert.Equal(t, "nextNodeId, 2", lines[4])
}

func TestRenderStakeOverride(t *testing.T) {
	lines, err := Render([]string{"node0", "node1"}, "1", Options{Stakes: map[string]uint64{"node1": 50}})
	require.NoError(t, err)

	assert.Contains(t, lines[2], "node0, node0, 1, ")
	assert.Contains(t, lines[3], "node1, node1, 50, ")

	_, err = Render([]string{"node0"}, "1", Options{Stakes: map[string]uint64{"node9": 5}})
	assert.True(t, errdefs.IsInvalidArgument(err))
}

func TestRenderCustomPortsAndApp(t *testing.T) {
	entries, err := Entries([]string{"node0"}, Options{Namespace: "x", AppName: "Other.jar", InternalPort: 50211, ExternalPort: 30211})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 50211, entries[0].InternalPort)
	assert.Equal(t, 30211, entries[0].ExternalPort)
	assert.Equal(t, "network-node0-svc.x.svc.cluster.local", entries[0].ExternalHost)

	lines, err := Render([]string{"node0"}, "1", Options{AppName: "Other.jar"})
	require.NoError(t, err)
	assert.Equal(t, "app, Other.jar", lines[1])
}

func TestRenderValidation(t *testing.T) {
	tests := []struct {
		name    string
		ids     []string
		chainID string
		check   func(error) bool
	}{
		{"no nodes", nil, "1", errdefs.IsMissingArgument},
		{"no chain id", []string{"node0"}, "", errdefs.IsMissingArgument},
		{"empty node id", []string{"node0", ""}, "1", errdefs.IsMissingArgument},
		{"duplicate", []string{"node0", "node0"}, "1", errdefs.IsInvalidArgument},
		{"bad characters", []string{"Node_0"}, "1", errdefs.IsInvalidArgument},
		{"path separator", []string{"../node0"}, "1", errdefs.IsInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Render(tt.ids, tt.chainID, Options{})
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error kind: %v", err)
		})
	}
}

func TestWriteHasNoTrailingNewline(t *testing.T) {
	lines, err := Render([]string{"node0", "node1"}, "7", Options{})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "config.txt")
	require.NoError(t, Write(path, lines))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, Text(lines), string(data))
	assert.NotEqual(t, byte('\n'), data[len(data)-1])
}
