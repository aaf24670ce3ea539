// Package cache persists computed spectrograms in a badger database keyed by
// an xxhash fingerprint of the input samples and spectrogram parameters.
package cache

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/OneOfOne/xxhash"
	"github.com/dgraph-io/badger/v3"
	"gonum.org/v1/gonum/mat"

	"github.com/maauso/songseg/internal/spect"
)

// Store is a spectrogram cache. It is safe for concurrent use.
type Store struct {
	db *badger.DB
}

// Open opens or creates a store in dir. An empty dir keeps the store in
// memory for the lifetime of the process.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open spectrogram cache: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// record is the gob payload stored per key.
type record struct {
	Power []byte
	Freqs []float64
	Times []float64
}

// Get returns the spectrogram stored under key. ok is false on a miss.
func (s *Store) Get(key uint64) (sp *spect.Spectrogram, ok bool, err error) {
	var rec record
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyBytes(key))
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return gob.NewDecoder(bytes.NewReader(val)).Decode(&rec)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cache entry %016x: %w", key, err)
	}

	var power mat.Dense
	if err := power.UnmarshalBinary(rec.Power); err != nil {
		return nil, false, fmt.Errorf("decode cache entry %016x: %w", key, err)
	}
	return &spect.Spectrogram{Power: &power, Freqs: rec.Freqs, Times: rec.Times}, true, nil
}

// Put stores sp under key, replacing any previous value.
func (s *Store) Put(key uint64, sp *spect.Spectrogram) error {
	power, err := sp.Power.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode spectrogram: %w", err)
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(record{Power: power, Freqs: sp.Freqs, Times: sp.Times}); err != nil {
		return fmt.Errorf("encode spectrogram: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(keyBytes(key), buf.Bytes())
	})
	if err != nil {
		return fmt.Errorf("write cache entry %016x: %w", key, err)
	}
	return nil
}

func keyBytes(key uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, key)
	return b
}

// Key fingerprints a spectrogram request. Two requests share a key only if
// their configs, sample rates and samples are identical.
func Key(cfg spect.Config, sampleRate int, samples []float64) (uint64, error) {
	h := xxhash.New64()
	params, err := json.Marshal(cfg)
	if err != nil {
		return 0, fmt.Errorf("encode config: %w", err)
	}
	_, _ = h.Write(params)

	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(sampleRate))
	_, _ = h.Write(b[:])

	buf := make([]byte, 8*len(samples))
	for i, v := range samples {
		binary.BigEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	_, _ = h.Write(buf)
	return h.Sum64(), nil
}
