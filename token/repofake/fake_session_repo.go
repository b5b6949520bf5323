package tokenfakerepo

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/jrsteele09/go-oauth-proxy/token"
)

var _ token.SessionRepo = (*FakeSessionRepo)(nil)

// FakeSessionRepo is a map backed token.SessionRepo whose operations can be made to fail.
type FakeSessionRepo struct {
	records map[string]token.Record
	lock    sync.RWMutex

	GetErr    error
	UpsertErr error
	DeleteErr error

	// GetGate, when set, blocks every Get until it is closed.
	GetGate chan struct{}
	Gets    atomic.Int32

	Upserts int
}

func NewFakeSessionRepo() *FakeSessionRepo {
	return &FakeSessionRepo{
		records: make(map[string]token.Record),
	}
}

func (r *FakeSessionRepo) Get(ctx context.Context, sessionID string) (*token.Record, error) {
	r.Gets.Add(1)
	if r.GetGate != nil {
		select {
		case <-r.GetGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	r.lock.RLock()
	defer r.lock.RUnlock()
	if r.GetErr != nil {
		return nil, r.GetErr
	}
	record, ok := r.records[sessionID]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

func (r *FakeSessionRepo) Upsert(_ context.Context, sessionID string, record token.Record) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.UpsertErr != nil {
		return r.UpsertErr
	}
	r.Upserts++
	r.records[sessionID] = record
	return nil
}

func (r *FakeSessionRepo) Delete(_ context.Context, sessionID string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.DeleteErr != nil {
		return r.DeleteErr
	}
	delete(r.records, sessionID)
	return nil
}

// Seed stores record without counting it as an Upsert.
func (r *FakeSessionRepo) Seed(sessionID string, record token.Record) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.records[sessionID] = record
}
