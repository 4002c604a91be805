package server

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ValentinKolb/dGrid/lib/pof"
	"go.etcd.io/bbolt"
)

// boltFileName is the database file inside the data directory
const boltFileName = "dgrid.db"

// boltBackend stores every named cache in its own bucket. Keys are the
// canonical POF encoding of the cache key, values hold an 8 byte deadline
// (unix nanos, 0 for none) followed by the POF encoding of the value.
type boltBackend struct {
	ctx pof.IPofContext
	db  *bbolt.DB
	now func() time.Time
}

// NewBoltBackend opens (or creates) the cache database in dataDir. Keys
// returned by Keys are decoded from their canonical form, so integer keys
// come back in their most compact type.
func NewBoltBackend(dataDir string, ctx pof.IPofContext) (ICacheBackend, error) {
	return newBoltBackend(dataDir, ctx, time.Now)
}

func newBoltBackend(dataDir string, ctx pof.IPofContext, now func() time.Time) (*boltBackend, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("bolt backend: no data directory configured")
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("bolt backend: %w", err)
	}

	bopt := &bbolt.Options{}
	*bopt = *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	bopt.FreelistType = bbolt.FreelistMapType

	path := filepath.Join(dataDir, boltFileName)
	db, err := bbolt.Open(path, 0o600, bopt)
	if err != nil {
		return nil, fmt.Errorf("bolt backend: %w", err)
	}
	backendLogger.Infof("Opened bolt cache database %s", path)
	return &boltBackend{ctx: ctx, db: db, now: now}, nil
}

// --------------------------------------------------------------------------
// Entry encoding
// --------------------------------------------------------------------------

func (b *boltBackend) encodeEntry(value any, deadline int64) ([]byte, error) {
	var head [8]byte
	binary.BigEndian.PutUint64(head[:], uint64(deadline))
	out := pof.NewWriteBuffer(make([]byte, 0, 64))
	_, _ = out.Write(head[:])
	if err := pof.SerializeTo(b.ctx, out, value); err != nil {
		return nil, fmt.Errorf("unsupported value %T: %w", value, err)
	}
	return out.Bytes(), nil
}

// decodeEntry decodes a stored entry. ok is false for expired entries.
func (b *boltBackend) decodeEntry(raw []byte, now time.Time) (value any, ok bool, err error) {
	if len(raw) < 8 {
		return nil, false, fmt.Errorf("corrupt entry of %d bytes", len(raw))
	}
	if expired(int64(binary.BigEndian.Uint64(raw[:8])), now) {
		return nil, false, nil
	}
	v, err := pof.Deserialize(b.ctx, raw[8:])
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func entryExpired(raw []byte, now time.Time) bool {
	return len(raw) >= 8 && expired(int64(binary.BigEndian.Uint64(raw[:8])), now)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see server.ICacheBackend)
// --------------------------------------------------------------------------

func (b *boltBackend) Get(cache string, key any) (value any, ok bool, err error) {
	ck, err := canonicalKey(b.ctx, key)
	if err != nil {
		return nil, false, err
	}
	err = b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(cache))
		if bucket == nil {
			return nil
		}
		raw := bucket.Get([]byte(ck))
		if raw == nil {
			return nil
		}
		value, ok, err = b.decodeEntry(raw, b.now())
		return err
	})
	return value, ok, err
}

func (b *boltBackend) put(bucket *bbolt.Bucket, ck string, value any, deadline int64, now time.Time) (previous any, ok bool, err error) {
	if raw := bucket.Get([]byte(ck)); raw != nil {
		if previous, ok, err = b.decodeEntry(raw, now); err != nil {
			return nil, false, err
		}
	}
	entry, err := b.encodeEntry(value, deadline)
	if err != nil {
		return nil, false, err
	}
	return previous, ok, bucket.Put([]byte(ck), entry)
}

func (b *boltBackend) Put(cache string, key, value any, expiry time.Duration) (previous any, ok bool, err error) {
	ck, err := canonicalKey(b.ctx, key)
	if err != nil {
		return nil, false, err
	}
	now := b.now()
	err = b.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(cache))
		if err != nil {
			return err
		}
		previous, ok, err = b.put(bucket, ck, value, deadlineOf(now, expiry), now)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return previous, ok, nil
}

func (b *boltBackend) PutAll(cache string, entries map[any]any, expiry time.Duration) (int64, error) {
	now := b.now()
	deadline := deadlineOf(now, expiry)
	var n int64
	err := b.db.Update(func(tx *bbolt.Tx) error {
		n = 0
		bucket, err := tx.CreateBucketIfNotExists([]byte(cache))
		if err != nil {
			return err
		}
		for k, v := range entries {
			ck, err := canonicalKey(b.ctx, k)
			if err != nil {
				return err
			}
			if _, _, err := b.put(bucket, ck, v, deadline, now); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (b *boltBackend) GetAll(cache string, keys []any) (map[any]any, error) {
	out := make(map[any]any, len(keys))
	now := b.now()
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(cache))
		if bucket == nil {
			return nil
		}
		for _, k := range keys {
			if err := checkMapKey(k); err != nil {
				return err
			}
			ck, err := canonicalKey(b.ctx, k)
			if err != nil {
				return err
			}
			raw := bucket.Get([]byte(ck))
			if raw == nil {
				continue
			}
			v, ok, err := b.decodeEntry(raw, now)
			if err != nil {
				return err
			}
			if ok {
				out[k] = v
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *boltBackend) Remove(cache string, key any) (previous any, ok bool, err error) {
	ck, err := canonicalKey(b.ctx, key)
	if err != nil {
		return nil, false, err
	}
	err = b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(cache))
		if bucket == nil {
			return nil
		}
		raw := bucket.Get([]byte(ck))
		if raw == nil {
			return nil
		}
		if previous, ok, err = b.decodeEntry(raw, b.now()); err != nil {
			return err
		}
		return bucket.Delete([]byte(ck))
	})
	if err != nil {
		return nil, false, err
	}
	return previous, ok, nil
}

func (b *boltBackend) ContainsKey(cache string, key any) (bool, error) {
	ck, err := canonicalKey(b.ctx, key)
	if err != nil {
		return false, err
	}
	var ok bool
	err = b.db.View(func(tx *bbolt.Tx) error {
		if bucket := tx.Bucket([]byte(cache)); bucket != nil {
			raw := bucket.Get([]byte(ck))
			ok = raw != nil && !entryExpired(raw, b.now())
		}
		return nil
	})
	return ok, err
}

// countLive counts the entries of bucket that have not expired
func countLive(bucket *bbolt.Bucket, now time.Time) int64 {
	var n int64
	c := bucket.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		if !entryExpired(v, now) {
			n++
		}
	}
	return n
}

func (b *boltBackend) Size(cache string) (int64, error) {
	var n int64
	err := b.db.View(func(tx *bbolt.Tx) error {
		if bucket := tx.Bucket([]byte(cache)); bucket != nil {
			n = countLive(bucket, b.now())
		}
		return nil
	})
	return n, err
}

func (b *boltBackend) Clear(cache string) (int64, error) {
	var n int64
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(cache))
		if bucket == nil {
			return nil
		}
		n = countLive(bucket, b.now())
		err := tx.DeleteBucket([]byte(cache))
		if errors.Is(err, bbolt.ErrBucketNotFound) {
			return nil
		}
		return err
	})
	return n, err
}

func (b *boltBackend) Keys(cache string) ([]any, error) {
	keys := make([]any, 0)
	now := b.now()
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(cache))
		if bucket == nil {
			return nil
		}
		c := bucket.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if entryExpired(v, now) {
				continue
			}
			key, err := pof.Deserialize(b.ctx, k)
			if err != nil {
				return fmt.Errorf("corrupt key in cache %q: %w", cache, err)
			}
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (b *boltBackend) Purge() (int, error) {
	now := b.now()
	removed := 0
	err := b.db.Update(func(tx *bbolt.Tx) error {
		removed = 0
		return tx.ForEach(func(name []byte, bucket *bbolt.Bucket) error {
			// collect first, deleting while iterating a cursor skips entries
			var due [][]byte
			c := bucket.Cursor()
			for k, v := c.First(); k != nil; k, v = c.Next() {
				if entryExpired(v, now) {
					due = append(due, append([]byte(nil), k...))
				}
			}
			for _, k := range due {
				if err := bucket.Delete(k); err != nil {
					return err
				}
			}
			removed += len(due)
			return nil
		})
	})
	if removed > 0 {
		backendLogger.Debugf("Purged %d expired entries", removed)
	}
	return removed, err
}

func (b *boltBackend) Close() error {
	return b.db.Close()
}
