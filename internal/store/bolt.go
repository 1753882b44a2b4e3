// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

package store

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
	"github.com/samber/oops"
)

var bucketKV = []byte("kv")

// Bolt is a single-file backend on boltdb.
type Bolt struct {
	db *bolt.DB
}

// OpenBolt opens or creates the database file at path, creating parent
// directories as needed.
func OpenBolt(path string) (*Bolt, error) {
	errb := oops.Code(CodeBackend).In("store").With("backend", BackendBolt).With("path", path)
	if path == "" {
		return nil, errb.Hint("set qlx_boltPath").Errorf("bolt path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, errb.Wrapf(err, "create database directory")
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errb.Wrapf(err, "open database")
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketKV)
		return err
	})
	if err != nil {
		_ = db.Close() //nolint:errcheck // bucket creation error takes precedence
		return nil, errb.Wrapf(err, "create bucket %q", bucketKV)
	}
	return &Bolt{db: db}, nil
}

// Get implements KV.
func (b *Bolt) Get(_ context.Context, key string) (string, bool, error) {
	if err := validateKey(key); err != nil {
		return "", false, err
	}
	var (
		value string
		ok    bool
	)
	err := b.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketKV).Get([]byte(key)); v != nil {
			value, ok = string(v), true
		}
		return nil
	})
	if err != nil {
		return "", false, oops.Code(CodeBackend).In("store").With("key", key).Wrap(err)
	}
	return value, ok, nil
}

// Set implements KV.
func (b *Bolt) Set(_ context.Context, key, value string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketKV).Put([]byte(key), []byte(value))
	})
	if err != nil {
		return oops.Code(CodeBackend).In("store").With("key", key).Wrap(err)
	}
	return nil
}

// Delete implements KV. Deleting a missing key is not an error.
func (b *Bolt) Delete(_ context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketKV).Delete([]byte(key))
	})
	if err != nil {
		return oops.Code(CodeBackend).In("store").With("key", key).Wrap(err)
	}
	return nil
}

// Keys implements KV.
func (b *Bolt) Keys(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	p := []byte(prefix)
	err := b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketKV).Cursor()
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})
	if err != nil {
		return nil, oops.Code(CodeBackend).In("store").With("prefix", prefix).Wrap(err)
	}
	return keys, nil
}

// Close releases the database file lock.
func (b *Bolt) Close() error {
	return b.db.Close()
}
