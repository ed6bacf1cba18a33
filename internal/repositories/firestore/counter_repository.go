package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pfirestore "github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/platform/firestore"
)

const countersCollection = "counters"

// CounterRepository mints monotonically increasing sequence values, one
// document per named sequence. A missing document starts the sequence at 1.
type CounterRepository struct {
	provider *pfirestore.Provider
	counters *pfirestore.BaseRepository[counterDocument]
}

// NewCounterRepository constructs a Firestore-backed counter repository.
func NewCounterRepository(provider *pfirestore.Provider) (*CounterRepository, error) {
	if provider == nil {
		return nil, errors.New("counter repository requires firestore provider")
	}
	return &CounterRepository{
		provider: provider,
		counters: pfirestore.NewBaseRepository[counterDocument](provider, countersCollection, nil),
	}, nil
}

// Next increments and returns the sequence value in its own transaction.
func (r *CounterRepository) Next(ctx context.Context, name string) (int64, error) {
	if r == nil || r.provider == nil {
		return 0, errors.New("counter repository not initialised")
	}

	var value int64
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		state, next, err := r.prepareNext(ctx, tx, name)
		if err != nil {
			return err
		}
		value = next
		return r.commit(tx, state)
	})
	if err != nil {
		return 0, err
	}
	return value, nil
}

type counterState struct {
	ref *firestore.DocumentRef
	doc counterDocument
}

// prepareNext reads the counter inside an enclosing transaction and bumps
// it in memory. Callers write it back with commit after all other reads in
// the transaction have finished.
func (r *CounterRepository) prepareNext(ctx context.Context, tx *firestore.Transaction, name string) (*counterState, int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, 0, errors.New("counter: sequence name is required")
	}

	ref, err := r.counters.DocumentRef(ctx, name)
	if err != nil {
		return nil, 0, err
	}

	var doc counterDocument
	snap, err := tx.Get(ref)
	if err != nil {
		if status.Code(err) != codes.NotFound {
			return nil, 0, err
		}
	} else if err := snap.DataTo(&doc); err != nil {
		return nil, 0, err
	}

	doc.Value++
	doc.UpdatedAt = time.Now().UTC()
	return &counterState{ref: ref, doc: doc}, doc.Value, nil
}

func (r *CounterRepository) commit(tx *firestore.Transaction, state *counterState) error {
	if state == nil {
		return errors.New("counter: nothing to commit")
	}
	return tx.Set(state.ref, state.doc)
}

type counterDocument struct {
	Value     int64     `firestore:"value"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}
