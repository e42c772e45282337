// Copyright 2025 UkweliDB Authors
//
// Package index is a derived, rebuildable secondary index over a
// ledger: fast lookups by record_hash and by signer that the ledger
// itself does not provide (it only supports positional access by
// index). The index is never authoritative: Index.Rebuild re-derives it
// from a ledger, so a corrupt or missing index file is never a
// data-loss event. pkg/recovery does not call Rebuild; the caller that
// owns an index does.
//
// Adapted from the teacher's pkg/kvdb adapter, which wrapped CometBFT's
// dbm.DB behind a minimal Get/Set seam; this package keeps that seam
// and adds range iteration, which the secondary index needs for
// signer lookups.
package index

import (
	dbm "github.com/cometbft/cometbft-db"
)

// kv is the minimal storage seam the index needs: point get/set plus a
// prefix-ordered range scan.
type kv interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Iterator(start, end []byte) (dbm.Iterator, error)
	Close() error
}

// dbAdapter wraps a CometBFT dbm.DB to satisfy kv.
type dbAdapter struct {
	db dbm.DB
}

func newDBAdapter(db dbm.DB) *dbAdapter {
	return &dbAdapter{db: db}
}

func (a *dbAdapter) Get(key []byte) ([]byte, error) {
	if a.db == nil {
		return nil, nil
	}
	v, err := a.db.Get(key)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (a *dbAdapter) Set(key, value []byte) error {
	if a.db == nil {
		return nil
	}
	return a.db.SetSync(key, value)
}

func (a *dbAdapter) Iterator(start, end []byte) (dbm.Iterator, error) {
	return a.db.Iterator(start, end)
}

func (a *dbAdapter) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
