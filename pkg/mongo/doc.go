// Package mongo connects to MongoDB and stores accounts and memorials in it.
//
// New and NewDatabase open a client with retry, configured from the
// environment through Config. Healthcheck returns a ping suitable for
// readiness probes.
//
// Store implements account.Store. Accounts live in the "accounts" collection
// and carry the memorial counter, which is incremented with $inc in a single
// FindOneAndUpdate so the caller sees the post-increment value. Memorials live
// in the "memorials" collection and are flagged, never removed, when they were
// created past the plan cap.
//
// # Usage
//
//	db, err := mongo.NewDatabase(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer db.Client().Disconnect(context.Background())
//
//	store := mongo.NewStore(db, cfg.OperationTimeout)
//	if err := store.EnsureIndexes(ctx); err != nil {
//		return err
//	}
//
// # Errors
//
// Missing documents map to account.ErrAccountNotFound and
// account.ErrMemorialNotFound. Every other driver error is joined with
// ErrStoreOperation so callers can tell "not found" from "store unavailable".
package mongo
