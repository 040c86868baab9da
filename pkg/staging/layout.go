package staging

import (
	"os"
	"path"
	"path/filepath"

	"github.com/cuemby/solo/pkg/errdefs"
)

const (
	// AppRoot is where the node software lives inside the pod
	AppRoot = "/opt/hgcapp/services-hedera/HapiApp2.0"

	// ConfigName is the rendered address book file name
	ConfigName = "config.txt"

	// TLSKeyName and TLSCertName are the names the node expects for its TLS pair
	TLSKeyName  = "hedera.key"
	TLSCertName = "hedera.crt"
)

// Local bundle directories
const (
	buildDirName     = "build"
	keysDirName      = "keys"
	templatesDirName = "templates"
)

// RemoteKeysDir is the pod directory holding the PKCS#12 containers
func RemoteKeysDir() string {
	return path.Join(AppRoot, "data", "keys")
}

// RemoteConfigDir is the pod directory holding configuration templates
func RemoteConfigDir() string {
	return path.Join(AppRoot, "data", "config")
}

// ValidateRelease checks that dir holds an unpacked platform release:
// a data directory with non-empty data/apps and data/lib
func ValidateRelease(dir string) error {
	const op = "staging.ValidateRelease"

	if dir == "" {
		return errdefs.Missing(op, "release directory")
	}
	if err := requireDir(op, dir, false); err != nil {
		return err
	}

	data := filepath.Join(dir, "data")
	if err := requireDir(op, data, false); err != nil {
		return err
	}
	for _, sub := range []string{"apps", "lib"} {
		if err := requireDir(op, filepath.Join(data, sub), true); err != nil {
			return err
		}
	}
	return nil
}

func requireDir(op, dir string, nonEmpty bool) error {
	info, err := os.Stat(dir)
	if err != nil {
		return errdefs.Wrap(errdefs.KindInvalidArgument, op, err, "release path %s does not exist", dir)
	}
	if !info.IsDir() {
		return errdefs.New(errdefs.KindInvalidArgument, op, "release path %s is not a directory", dir)
	}
	if !nonEmpty {
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return errdefs.Wrap(errdefs.KindInvalidArgument, op, err, "reading release path %s", dir)
	}
	if len(entries) == 0 {
		return errdefs.New(errdefs.KindInvalidArgument, op, "release path %s is empty", dir)
	}
	return nil
}
