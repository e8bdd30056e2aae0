package wallet

import (
	"fmt"
	"sort"
	"time"

	"github.com/bitmark-inc/bitmarkd/util"
	"github.com/boltdb/bolt"
)

var (
	ErrKeystoreNotRecorded = fmt.Errorf("keystore is not recorded")
	ErrCorruptRecord       = fmt.Errorf("keystore record is corrupt")
)

var keystoreBucket = []byte("keystores")

// Keystore is the public part of a keystore known to the wallet.
type Keystore struct {
	Label     string
	Address   string
	CreatedAt time.Time

	// Missing is set by Wallet.List for recorded keystores whose file is
	// gone. It is not stored.
	Missing bool
}

func packKeystore(k Keystore) []byte {
	b := make([]byte, 0, 64)
	b = append(b, util.ToVarint64(uint64(len(k.Address)))...)
	b = append(b, k.Address...)
	b = append(b, util.ToVarint64(uint64(k.CreatedAt.Unix()))...)
	return b
}

func unpackKeystore(label string, b []byte) (Keystore, error) {
	addrLen, n := util.FromVarint64(b)
	if n == 0 || uint64(len(b)-n) < addrLen {
		return Keystore{}, fmt.Errorf("%w: %s", ErrCorruptRecord, label)
	}
	offset := n
	addr := string(b[offset : offset+int(addrLen)])
	offset += int(addrLen)

	created, n := util.FromVarint64(b[offset:])
	if n == 0 {
		return Keystore{}, fmt.Errorf("%w: %s", ErrCorruptRecord, label)
	}
	return Keystore{
		Label:     label,
		Address:   addr,
		CreatedAt: time.Unix(int64(created), 0),
	}, nil
}

// KeystoreStore indexes keystores by label. It never holds secrets.
type KeystoreStore interface {
	Get(label string) (Keystore, error)
	Put(k Keystore) error
	Delete(label string) error
	All() ([]Keystore, error)
	Close()
}

type BoltKeystoreStore struct {
	db *bolt.DB
}

func (b BoltKeystoreStore) Close() {
	b.db.Close()
}

func (b BoltKeystoreStore) Get(label string) (Keystore, error) {
	var k Keystore
	if err := b.db.View(func(tx *bolt.Tx) error {
		buf := tx.Bucket(keystoreBucket).Get([]byte(label))
		if buf == nil {
			return ErrKeystoreNotRecorded
		}
		var err error
		k, err = unpackKeystore(label, buf)
		return err
	}); err != nil {
		return Keystore{}, err
	}
	return k, nil
}

func (b BoltKeystoreStore) Put(k Keystore) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(keystoreBucket).Put([]byte(k.Label), packKeystore(k))
	})
}

// Delete forgets label. Deleting an unknown label is not an error.
func (b BoltKeystoreStore) Delete(label string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(keystoreBucket).Delete([]byte(label))
	})
}

// All returns every record ordered by label.
func (b BoltKeystoreStore) All() ([]Keystore, error) {
	keystores := make([]Keystore, 0)
	if err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(keystoreBucket).ForEach(func(label, buf []byte) error {
			k, err := unpackKeystore(string(label), buf)
			if err != nil {
				return err
			}
			keystores = append(keystores, k)
			return nil
		})
	}); err != nil {
		return nil, err
	}
	sort.Slice(keystores, func(i, j int) bool {
		return keystores[i].Label < keystores[j].Label
	})
	return keystores, nil
}

func NewBoltKeystoreStore(filename string) (*BoltKeystoreStore, error) {
	db, err := bolt.Open(filename, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	tx, err := db.Begin(true)
	if err != nil {
		db.Close()
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.CreateBucketIfNotExists(keystoreBucket); err != nil {
		db.Close()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		db.Close()
		return nil, err
	}

	return &BoltKeystoreStore{
		db: db,
	}, nil
}
