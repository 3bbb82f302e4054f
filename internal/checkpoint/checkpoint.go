// Package checkpoint persists trained network snapshots and their
// evaluation results across self-play cycles, adapted from the
// teacher's BadgerDB-backed Storage (internal/storage/storage.go):
// same db.Update/db.View plus JSON-manifest pattern, repointed from
// user preferences and play statistics onto a versioned model
// manifest with retention and best-checkpoint tracking.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/hailam/chessrl/internal/network"
)

const manifestKeyPrefix = "checkpoint:"
const bestKey = "checkpoint:best"

// Meta describes one saved network snapshot.
type Meta struct {
	Cycle     int       `json:"cycle"`
	Path      string    `json:"path"`
	WinRate   float64   `json:"win_rate"`
	CreatedAt time.Time `json:"created_at"`
}

// Manager saves and retrieves checkpoints under a directory, keeping
// a BadgerDB manifest of which weight files exist, their evaluation
// results, and which one is best by win rate.
type Manager struct {
	db          *badger.DB
	dir         string
	maxVersions int
}

// Open opens (creating if needed) a checkpoint manager rooted at dir.
// maxVersions <= 0 means unlimited retention.
func Open(dir string, maxVersions int) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("checkpoint: creating directory %s: %w", dir, err)
	}

	opts := badger.DefaultOptions(filepath.Join(dir, "manifest"))
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: opening manifest db: %w", err)
	}

	return &Manager{db: db, dir: dir, maxVersions: maxVersions}, nil
}

// Close closes the underlying manifest database.
func (m *Manager) Close() error {
	return m.db.Close()
}

// Save writes net's weights to a versioned file under the checkpoint
// directory, records a Meta entry for cycle, updates the best-by-win-rate
// pointer if winRate improves on it, and prunes old versions beyond
// maxVersions (the most recent and the current best are always kept).
func (m *Manager) Save(net *network.Network, cycle int, winRate float64) (Meta, error) {
	filename := fmt.Sprintf("cycle-%06d.gob", cycle)
	path := filepath.Join(m.dir, filename)
	if err := net.Save(path); err != nil {
		return Meta{}, fmt.Errorf("checkpoint: saving weights: %w", err)
	}

	meta := Meta{Cycle: cycle, Path: path, WinRate: winRate, CreatedAt: time.Now()}
	if err := m.putMeta(manifestKeyPrefix+fmt.Sprint(cycle), meta); err != nil {
		return Meta{}, err
	}

	best, err := m.LoadBestMeta()
	if err != nil && err != errNoCheckpoint {
		return Meta{}, err
	}
	if err == errNoCheckpoint || winRate > best.WinRate {
		if err := m.putMeta(bestKey, meta); err != nil {
			return Meta{}, err
		}
	}

	if err := m.prune(); err != nil {
		return Meta{}, err
	}
	return meta, nil
}

func (m *Manager) putMeta(key string, meta Meta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("checkpoint: marshaling manifest entry: %w", err)
	}
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

var errNoCheckpoint = fmt.Errorf("checkpoint: no checkpoint found")

// LoadBestMeta returns the manifest entry for the highest win-rate
// checkpoint saved so far.
func (m *Manager) LoadBestMeta() (Meta, error) {
	var meta Meta
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(bestKey))
		if err == badger.ErrKeyNotFound {
			return errNoCheckpoint
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &meta)
		})
	})
	return meta, err
}

// LoadBest loads the best-by-win-rate checkpoint's network weights.
func (m *Manager) LoadBest() (*network.Network, Meta, error) {
	meta, err := m.LoadBestMeta()
	if err != nil {
		return nil, Meta{}, err
	}
	net, err := network.Load(meta.Path)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("checkpoint: loading best weights: %w", err)
	}
	return net, meta, nil
}

// ListVersions returns every retained checkpoint's metadata, ordered
// oldest to newest by cycle.
func (m *Manager) ListVersions() ([]Meta, error) {
	var metas []Meta
	err := m.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(manifestKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			if string(item.Key()) == bestKey {
				continue
			}
			var meta Meta
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &meta)
			}); err != nil {
				return err
			}
			metas = append(metas, meta)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("checkpoint: listing versions: %w", err)
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].Cycle < metas[j].Cycle })
	return metas, nil
}

// LoadLatest loads the most recently saved checkpoint.
func (m *Manager) LoadLatest() (*network.Network, Meta, error) {
	versions, err := m.ListVersions()
	if err != nil {
		return nil, Meta{}, err
	}
	if len(versions) == 0 {
		return nil, Meta{}, errNoCheckpoint
	}
	latest := versions[len(versions)-1]
	net, err := network.Load(latest.Path)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("checkpoint: loading latest weights: %w", err)
	}
	return net, latest, nil
}

// prune deletes manifest entries and weight files for versions beyond
// maxVersions, always keeping the most recent entries and the current
// best regardless of age.
func (m *Manager) prune() error {
	if m.maxVersions <= 0 {
		return nil
	}
	versions, err := m.ListVersions()
	if err != nil {
		return err
	}
	if len(versions) <= m.maxVersions {
		return nil
	}

	best, err := m.LoadBestMeta()
	hasBest := err == nil

	toDrop := len(versions) - m.maxVersions
	dropped := 0
	for _, v := range versions {
		if dropped >= toDrop {
			break
		}
		if hasBest && v.Cycle == best.Cycle {
			continue
		}
		if err := os.Remove(v.Path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("checkpoint: removing %s: %w", v.Path, err)
		}
		if err := m.db.Update(func(txn *badger.Txn) error {
			return txn.Delete([]byte(manifestKeyPrefix + fmt.Sprint(v.Cycle)))
		}); err != nil {
			return fmt.Errorf("checkpoint: deleting manifest entry for cycle %d: %w", v.Cycle, err)
		}
		dropped++
	}
	return nil
}
