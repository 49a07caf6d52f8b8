package audit

import "context"

// Store persists audit entries. Implementations are append-only: nothing in
// this interface can modify or remove an entry once written.
//
// List applies the filter but makes no ordering promise; the Log service owns
// the newest-first contract.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	List(ctx context.Context, filter Filter) ([]Entry, error)
}

// Sink receives a copy of every appended entry for out-of-process delivery
// (durable ledger, compliance export). Sink failures never fail the append.
type Sink interface {
	Publish(ctx context.Context, entry Entry) error
}
