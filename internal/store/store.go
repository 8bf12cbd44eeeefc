// Package store persists one record per job of a publish run so a batch
// can be inspected while it runs and after it finishes.
//
// The DynamoDB layout is a single table where every record of a run shares
// the partition key RUN#{runId}. The sort key JOB#{index} is zero-padded so
// a Query returns the jobs in input order. A TTL attribute (expiresAt)
// removes records after RecordTTL.
package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// RecordTTL is the lifetime of a run record.
const RecordTTL = 24 * time.Hour

// Record phases.
const (
	PhaseRunning  = "running"
	PhaseComplete = "complete"
	PhaseError    = "error"
)

// Record is the persisted state of one job in a run. RunID and Index are
// derived from the table keys.
type Record struct {
	RunID      string `json:"runId" dynamodbav:"-"`
	Index      int    `json:"index" dynamodbav:"-"`
	JobID      string `json:"jobId,omitempty" dynamodbav:"jobId,omitempty"`
	Platform   string `json:"platform" dynamodbav:"platform"`
	Operation  string `json:"operation" dynamodbav:"operation"`
	Phase      string `json:"phase" dynamodbav:"phase"`
	CreationID string `json:"creationId,omitempty" dynamodbav:"creationId,omitempty"`
	VideoID    string `json:"videoId,omitempty" dynamodbav:"videoId,omitempty"`
	Status     string `json:"status,omitempty" dynamodbav:"status,omitempty"`
	Published  bool   `json:"published" dynamodbav:"published"`
	Permalink  string `json:"permalink,omitempty" dynamodbav:"permalink,omitempty"`
	Error      string `json:"error,omitempty" dynamodbav:"error,omitempty"`
	UpdatedAt  int64  `json:"updatedAt" dynamodbav:"updatedAt"`
}

// RecordStore persists run records. Put performs full-item replacement.
// GetRecords returns an empty slice for an unknown run.
type RecordStore interface {
	PutRecord(ctx context.Context, rec *Record) error
	GetRecords(ctx context.Context, runID string) ([]Record, error)
	// SetRecordError marks a record as failed without rewriting the rest of
	// it.
	SetRecordError(ctx context.Context, runID string, index int, msg string) error
}

// MemoryStore is a RecordStore held in process memory. It backs the CLI
// and tests. A run expires RecordTTL after its last write, matching the
// DynamoDB TTL; expired runs read as unknown and are dropped on the next
// write. The zero value is ready to use.
type MemoryStore struct {
	mu   sync.Mutex
	now  func() time.Time
	runs map[string]*memoryRun
}

type memoryRun struct {
	records map[int]Record
	touched time.Time
}

var _ RecordStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]*memoryRun)}
}

func (m *MemoryStore) clock() time.Time {
	if m.now != nil {
		return m.now()
	}
	return time.Now()
}

func (m *MemoryStore) expired(r *memoryRun, now time.Time) bool {
	return now.Sub(r.touched) >= RecordTTL
}

// run returns the live run for runID, creating it, and evicts every
// expired run. Callers hold mu.
func (m *MemoryStore) run(runID string, now time.Time) *memoryRun {
	if m.runs == nil {
		m.runs = make(map[string]*memoryRun)
	}
	for id, r := range m.runs {
		if m.expired(r, now) {
			delete(m.runs, id)
		}
	}
	r, ok := m.runs[runID]
	if !ok {
		r = &memoryRun{records: make(map[int]Record)}
		m.runs[runID] = r
	}
	r.touched = now
	return r
}

func (m *MemoryStore) PutRecord(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock()
	if rec.UpdatedAt == 0 {
		rec.UpdatedAt = now.Unix()
	}
	m.run(rec.RunID, now).records[rec.Index] = *rec
	return nil
}

func (m *MemoryStore) GetRecords(_ context.Context, runID string) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[runID]
	if !ok || m.expired(r, m.clock()) {
		return []Record{}, nil
	}
	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

func (m *MemoryStore) SetRecordError(_ context.Context, runID string, index int, msg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock()
	r := m.run(runID, now)
	rec := r.records[index]
	rec.RunID = runID
	rec.Index = index
	rec.Phase = PhaseError
	rec.Error = msg
	rec.UpdatedAt = now.Unix()
	r.records[index] = rec
	return nil
}
