// Package store provides the durable key/value backend for the profile
// cache, persisted through Bun so entries survive process restarts.
package store

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	session "github.com/goliatone/go-session"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// KVEntry is the persisted key/value record
type KVEntry struct {
	bun.BaseModel `bun:"table:kv_entries,alias:kve"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Key           string     `bun:"key,notnull,unique" json:"key,omitempty"`
	Value         string     `bun:"value,notnull" json:"value,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// BunStore implements session.KeyValueStore on top of a Bun database.
type BunStore struct {
	db   *bun.DB
	repo repository.Repository[*KVEntry]
}

var _ session.KeyValueStore = (*BunStore)(nil)

// NewBunStore will create a new BunStore
func NewBunStore(db *bun.DB) *BunStore {
	handlers := repository.ModelHandlers[*KVEntry]{
		NewRecord: func() *KVEntry {
			return &KVEntry{}
		},
		GetID: func(record *KVEntry) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *KVEntry, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "key"
		},
	}

	return &BunStore{
		db:   db,
		repo: repository.NewRepository(db, handlers),
	}
}

// Init creates the backing table when missing.
func (s *BunStore) Init(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*KVEntry)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to create kv_entries table")
	}
	return nil
}

// Get returns the value stored under key, or session.ErrKeyNotFound.
func (s *BunStore) Get(ctx context.Context, key string) (string, error) {
	record := &KVEntry{}

	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.key = ?", key).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return "", session.ErrKeyNotFound
		}
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to read kv entry")
	}

	return record.Value, nil
}

// Set overwrites any existing entry for key.
func (s *BunStore) Set(ctx context.Context, key, value string) error {
	existing, err := s.repo.GetByIdentifierTx(ctx, s.db, key)
	if err == nil {
		record := &KVEntry{}
		record.ID = existing.ID
		record.Key = key
		record.Value = value
		now := time.Now()
		record.UpdatedAt = &now

		_, err = s.repo.UpdateTx(ctx, s.db, record, repository.UpdateByID(existing.ID.String()))
		return err
	}

	if !repository.IsRecordNotFound(err) {
		return errors.Wrap(err, errors.CategoryInternal, "failed to look up kv entry")
	}

	record := &KVEntry{
		ID:    uuid.New(),
		Key:   key,
		Value: value,
	}

	_, err = s.repo.CreateTx(ctx, s.db, record)
	return err
}

// Remove deletes the entry for key. Missing keys are not an error.
func (s *BunStore) Remove(ctx context.Context, key string) error {
	_, err := s.db.NewDelete().
		Model((*KVEntry)(nil)).
		Where("key = ?", key).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to remove kv entry")
	}
	return nil
}

// Keys lists every stored key.
func (s *BunStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := s.db.NewSelect().
		Model((*KVEntry)(nil)).
		Column("key").
		Scan(ctx, &keys)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to list kv entries")
	}
	return keys, nil
}
