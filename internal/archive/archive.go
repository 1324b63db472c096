// Package archive exports whole-model snapshots to a blob store and reads
// them back.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"euroaip/internal/blob"
	"euroaip/internal/model"
	"euroaip/pkg/domain"
)

const (
	rootPrefix   = "snapshots/"
	snapshotName = "model.json"
	contentType  = "application/json"
)

// Snapshot is the document written for one cycle.
type Snapshot struct {
	Cycle           string                       `json:"cycle"`
	ExportedAt      time.Time                    `json:"exported_at"`
	Statistics      model.Statistics             `json:"statistics"`
	Airports        []domain.Airport             `json:"airports"`
	BorderCrossings []domain.BorderCrossingEntry `json:"border_crossings,omitempty"`
}

// Entry describes one archived snapshot.
type Entry struct {
	Cycle string
	Key   string
	Size  int64
	At    time.Time
}

// Archiver writes snapshots under snapshots/<cycle>/model.json.
type Archiver struct {
	store blob.Store
	now   func() time.Time
}

// New returns an archiver over store.
func New(store blob.Store) *Archiver {
	return &Archiver{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// Key returns the blob key of a cycle.
func Key(cycle string) string {
	return path.Join(strings.TrimSuffix(rootPrefix, "/"), cycle, snapshotName)
}

// Export writes m as the snapshot of cycle, replacing an earlier export of
// the same cycle.
func (a *Archiver) Export(ctx context.Context, m *model.Model, cycle string) (blob.Info, error) {
	cycle = strings.TrimSpace(cycle)
	if cycle == "" || strings.ContainsAny(cycle, "/\\") {
		return blob.Info{}, fmt.Errorf("invalid cycle %q", cycle)
	}
	snap := Snapshot{
		Cycle:           cycle,
		ExportedAt:      a.now(),
		Statistics:      m.Statistics(),
		Airports:        m.Airports(),
		BorderCrossings: m.AllBorderCrossingEntries(),
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return blob.Info{}, fmt.Errorf("encode snapshot: %w", err)
	}
	info, err := a.store.Put(ctx, Key(cycle), bytes.NewReader(data), blob.PutOptions{
		ContentType: contentType,
		Metadata:    map[string]string{"cycle": cycle, "airports": fmt.Sprint(len(snap.Airports))},
		Overwrite:   true,
	})
	if err != nil {
		return blob.Info{}, fmt.Errorf("put snapshot %s: %w", cycle, err)
	}
	return info, nil
}

// Read decodes the snapshot stored at key.
func (a *Archiver) Read(ctx context.Context, key string) (Snapshot, error) {
	_, rc, err := a.store.Get(ctx, key)
	if err != nil {
		return Snapshot{}, fmt.Errorf("get snapshot %s: %w", key, err)
	}
	defer func() { _ = rc.Close() }()
	var snap Snapshot
	if err := json.NewDecoder(rc).Decode(&snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	return snap, nil
}

// Import rebuilds a model from the snapshot at key. Stored timestamps and
// derived flags are kept as exported.
func (a *Archiver) Import(ctx context.Context, key string, opts ...model.Option) (*model.Model, error) {
	snap, err := a.Read(ctx, key)
	if err != nil {
		return nil, err
	}
	m := model.New(opts...)
	m.BulkLoad(snap.Airports)
	m.LoadBorderCrossingEntries(snap.BorderCrossings)
	return m, nil
}

// ImportCycle is Import for the snapshot of cycle.
func (a *Archiver) ImportCycle(ctx context.Context, cycle string, opts ...model.Option) (*model.Model, error) {
	return a.Import(ctx, Key(cycle), opts...)
}

// List returns the archived snapshots sorted by cycle.
func (a *Archiver) List(ctx context.Context) ([]Entry, error) {
	infos, err := a.store.List(ctx, rootPrefix)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	var out []Entry
	for _, info := range infos {
		rest := strings.TrimPrefix(info.Key, rootPrefix)
		cycle, name, ok := strings.Cut(rest, "/")
		if !ok || name != snapshotName {
			continue
		}
		out = append(out, Entry{Cycle: cycle, Key: info.Key, Size: info.Size, At: info.LastModified})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cycle < out[j].Cycle })
	return out, nil
}

// URL returns a time-limited link to a cycle's snapshot. Backends that cannot
// sign URLs return an error wrapping blob.ErrUnsupported.
func (a *Archiver) URL(ctx context.Context, cycle string, expiry time.Duration) (string, error) {
	u, err := a.store.PresignURL(ctx, Key(cycle), blob.SignedURLOptions{Expiry: expiry})
	if err != nil {
		if errors.Is(err, blob.ErrUnsupported) {
			return "", fmt.Errorf("snapshot url via %s: %w", a.store.Driver(), err)
		}
		return "", fmt.Errorf("snapshot url %s: %w", cycle, err)
	}
	return u, nil
}
