// Copyright (c) 2015 Western Digital Corporation or its affiliates.  All rights reserved.
// SPDX-License-Identifier: MIT

// Package history keeps a local record of the files a user uploaded, so
// they can be listed and cleaned up later. It's backed by boltdb.
package history

import (
	"encoding/binary"
	"os"
	"time"

	"github.com/boltdb/bolt"
	log "github.com/golang/glog"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var (
	mode          = 0600
	uploadsBucket = []byte("uploads")

	json = jsoniter.ConfigCompatibleWithStandardLibrary
)

// Entry is one upload.
type Entry struct {
	// Seq orders entries. It's assigned by Record.
	Seq       uint64    `json:"-"`
	Op        string    `json:"op"`
	FileID    string    `json:"file_id"`
	StorageIP string    `json:"storage_ip"`
	LocalFile string    `json:"local_file,omitempty"`
	Size      int64     `json:"size"`
	Time      time.Time `json:"time"`
}

// DB is an upload history stored in a file.
type DB struct {
	db *bolt.DB
}

// Open opens the history at 'path', creating it if it doesn't exist.
func Open(path string) (*DB, error) {
	db, err := bolt.Open(path, os.FileMode(mode), &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "open history %s", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(uploadsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create bucket")
	}
	return &DB{db: db}, nil
}

// Close closes the history file.
func (d *DB) Close() error {
	return d.db.Close()
}

// Record adds 'e' to the history and returns its sequence number. A zero
// Time is set to now.
func (d *DB) Record(e Entry) (uint64, error) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	err := d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(uploadsBucket)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		e.Seq = seq
		val, err := json.Marshal(e)
		if err != nil {
			return err
		}
		return b.Put(seqKey(seq), val)
	})
	if err != nil {
		return 0, errors.Wrap(err, "record upload")
	}
	log.V(1).Infof("recorded upload %d of %s", e.Seq, e.FileID)
	return e.Seq, nil
}

// List returns up to 'n' entries, newest first. If 'n' is not positive all
// entries are returned.
func (d *DB) List(n int) ([]Entry, error) {
	var out []Entry
	err := d.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(uploadsBucket).Cursor()
		for k, v := c.Last(); k != nil && (n <= 0 || len(out) < n); k, v = c.Prev() {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return errors.Wrapf(err, "bad entry %d", binary.BigEndian.Uint64(k))
			}
			e.Seq = binary.BigEndian.Uint64(k)
			out = append(out, e)
		}
		return nil
	})
	return out, err
}

// Remove drops every entry for 'fileID' and returns how many there were.
func (d *DB) Remove(fileID string) (int, error) {
	removed := 0
	err := d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(uploadsBucket)
		var keys [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			if e.FileID == fileID {
				keys = append(keys, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		// Don't change the bucket while iterating it.
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(keys)
		return nil
	})
	return removed, errors.Wrap(err, "remove upload")
}

func seqKey(seq uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], seq)
	return k[:]
}
