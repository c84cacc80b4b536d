package metrics

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultSnapshotInterval is how often snapshots are written and caches swept.
const DefaultSnapshotInterval = 5 * time.Minute

// Record is what gets persisted: the snapshot plus when it was written.
type Record struct {
	WrittenAt time.Time `json:"written_at"`
	Metrics   Snapshot  `json:"metrics"`
}

// Store persists the latest record, replacing the previous one.
type Store interface {
	Save(ctx context.Context, record Record) error
}

// FileStore writes the record as JSON to a single file.
type FileStore struct {
	path string
}

// NewFileStore targets path; parent directories are created on first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Save replaces the file atomically via a temporary file in the same directory.
func (s *FileStore) Save(_ context.Context, record Record) error {
	payload, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal metrics record")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", dir)
	}
	tmp, err := os.CreateTemp(dir, ".metrics-*.json")
	if err != nil {
		return errors.Wrap(err, "create temp metrics file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "write metrics file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close metrics file")
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return errors.Wrapf(err, "replace %s", s.path)
	}
	return nil
}

// Load reads the last saved record.
func (s *FileStore) Load() (Record, error) {
	var record Record
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return record, errors.Wrapf(err, "read %s", s.path)
	}
	if err := json.Unmarshal(raw, &record); err != nil {
		return record, errors.Wrapf(err, "decode %s", s.path)
	}
	return record, nil
}

// Sweeper removes expired entries and reports how many were dropped.
type Sweeper interface {
	Sweep() int
}

// Persister saves collector snapshots on a fixed interval and sweeps caches in the same cycle.
type Persister struct {
	collector *Collector
	store     Store
	interval  time.Duration
	sweepers  []Sweeper
	log       logrus.FieldLogger
	now       func() time.Time
}

// NewPersister wires the loop. A non-positive interval uses DefaultSnapshotInterval.
func NewPersister(collector *Collector, store Store, interval time.Duration, log logrus.FieldLogger, sweepers ...Sweeper) *Persister {
	if interval <= 0 {
		interval = DefaultSnapshotInterval
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Persister{
		collector: collector,
		store:     store,
		interval:  interval,
		sweepers:  sweepers,
		log:       log,
		now:       time.Now,
	}
}

// Run blocks until ctx is done, then flushes once more.
func (p *Persister) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := p.Flush(flushCtx); err != nil {
				p.log.WithError(err).Warn("final metrics flush failed")
			}
			cancel()
			return
		case <-ticker.C:
			if err := p.Flush(ctx); err != nil {
				p.log.WithError(err).Warn("metrics flush failed")
			}
		}
	}
}

// Flush sweeps every registered cache and saves one snapshot.
func (p *Persister) Flush(ctx context.Context) error {
	swept := 0
	for _, s := range p.sweepers {
		swept += s.Sweep()
	}

	snap := p.collector.Snapshot()
	system := CollectSystemStats()
	snap.System = &system

	record := Record{WrittenAt: p.now().UTC(), Metrics: snap}
	if err := p.store.Save(ctx, record); err != nil {
		return errors.Wrap(err, "save metrics snapshot")
	}
	p.log.WithFields(logrus.Fields{
		"total_requests": snap.TotalRequests,
		"cache_swept":    swept,
	}).Debug("metrics snapshot saved")
	return nil
}
