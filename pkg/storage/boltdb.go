package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/solo/pkg/errdefs"
	"github.com/cuemby/solo/pkg/types"
)

// DBFile is the state database name inside the state directory
const DBFile = "solo.db"

// How long Open waits for another process holding the file lock
const lockTimeout = 5 * time.Second

var (
	// Bucket names
	bucketArtifacts   = []byte("artifacts")
	bucketRuns        = []byte("runs")
	bucketDeployments = []byte("deployments")
)

// BoltStore implements Store interface using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the state database in dataDir.
// The database file lock serializes processes sharing one state directory.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	if dataDir == "" {
		return nil, errdefs.Missing("storage.NewBoltStore", "state directory")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DBFile)

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: lockTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketArtifacts,
			bucketRuns,
			bucketDeployments,
		}

		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Count returns the number of records in each bucket
func (s *BoltStore) Count() (artifacts, runs, deployments int, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		artifacts = tx.Bucket(bucketArtifacts).Stats().KeyN
		runs = tx.Bucket(bucketRuns).Stats().KeyN
		deployments = tx.Bucket(bucketDeployments).Stats().KeyN
		return nil
	})
	return artifacts, runs, deployments, err
}

// Artifact operations

// SaveArtifact upserts artifact keyed by its tag
func (s *BoltStore) SaveArtifact(artifact *types.ReleaseArtifact) error {
	if artifact == nil || artifact.Tag.Raw == "" {
		return errdefs.Missing("storage.SaveArtifact", "artifact tag")
	}
	return s.put(bucketArtifacts, artifact.Tag.Raw, artifact)
}

func (s *BoltStore) GetArtifact(tag string) (*types.ReleaseArtifact, error) {
	var artifact types.ReleaseArtifact
	if err := s.get(bucketArtifacts, tag, &artifact); err != nil {
		return nil, err
	}
	return &artifact, nil
}

func (s *BoltStore) ListArtifacts() ([]*types.ReleaseArtifact, error) {
	var artifacts []*types.ReleaseArtifact
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketArtifacts)
		return b.ForEach(func(k, v []byte) error {
			var artifact types.ReleaseArtifact
			if err := json.Unmarshal(v, &artifact); err != nil {
				return err
			}
			artifacts = append(artifacts, &artifact)
			return nil
		})
	})
	return artifacts, err
}

func (s *BoltStore) DeleteArtifact(tag string) error {
	return s.delete(bucketArtifacts, tag)
}

// Run operations

// SaveRun upserts run keyed by its ID
func (s *BoltStore) SaveRun(run *types.ProvisionRun) error {
	if run == nil || run.ID == "" {
		return errdefs.Missing("storage.SaveRun", "run id")
	}
	return s.put(bucketRuns, run.ID, run)
}

func (s *BoltStore) GetRun(id string) (*types.ProvisionRun, error) {
	var run types.ProvisionRun
	if err := s.get(bucketRuns, id, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns all runs, oldest first
func (s *BoltStore) ListRuns() ([]*types.ProvisionRun, error) {
	return s.listRuns(func(*types.ProvisionRun) bool { return true })
}

// ListRunsByNamespace returns the runs that targeted namespace, oldest first
func (s *BoltStore) ListRunsByNamespace(namespace string) ([]*types.ProvisionRun, error) {
	return s.listRuns(func(run *types.ProvisionRun) bool {
		return run.Namespace == namespace
	})
}

func (s *BoltStore) listRuns(match func(*types.ProvisionRun) bool) ([]*types.ProvisionRun, error) {
	var runs []*types.ProvisionRun
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRuns)
		return b.ForEach(func(k, v []byte) error {
			var run types.ProvisionRun
			if err := json.Unmarshal(v, &run); err != nil {
				return err
			}
			if match(&run) {
				runs = append(runs, &run)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].StartedAt.Before(runs[j].StartedAt)
	})
	return runs, nil
}

func (s *BoltStore) DeleteRun(id string) error {
	return s.delete(bucketRuns, id)
}

// Deployment operations

func deploymentKey(namespace, release string) string {
	return namespace + "/" + release
}

// SaveDeployment upserts deployment keyed by namespace and release name
func (s *BoltStore) SaveDeployment(deployment *types.ChartDeployment) error {
	if deployment == nil || deployment.Namespace == "" || deployment.ReleaseName == "" {
		return errdefs.Missing("storage.SaveDeployment", "namespace and release name")
	}
	return s.put(bucketDeployments, deploymentKey(deployment.Namespace, deployment.ReleaseName), deployment)
}

func (s *BoltStore) GetDeployment(namespace, release string) (*types.ChartDeployment, error) {
	var deployment types.ChartDeployment
	if err := s.get(bucketDeployments, deploymentKey(namespace, release), &deployment); err != nil {
		return nil, err
	}
	return &deployment, nil
}

func (s *BoltStore) ListDeployments() ([]*types.ChartDeployment, error) {
	var deployments []*types.ChartDeployment
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDeployments)
		return b.ForEach(func(k, v []byte) error {
			var deployment types.ChartDeployment
			if err := json.Unmarshal(v, &deployment); err != nil {
				return err
			}
			deployments = append(deployments, &deployment)
			return nil
		})
	})
	return deployments, err
}

func (s *BoltStore) DeleteDeployment(namespace, release string) error {
	return s.delete(bucketDeployments, deploymentKey(namespace, release))
}

// Helpers

func (s *BoltStore) put(bucket []byte, key string, value interface{}) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		data, err := json.Marshal(value)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
}

func (s *BoltStore) get(bucket []byte, key string, value interface{}) error {
	return s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		data := b.Get([]byte(key))
		if data == nil {
			return errdefs.New(errdefs.KindResourceNotFound, "storage.get", "%s not found: %s", bucket, key)
		}
		return json.Unmarshal(data, value)
	})
}

func (s *BoltStore) delete(bucket []byte, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		return b.Delete([]byte(key))
	})
}
