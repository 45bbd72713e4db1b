package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/dhruvspathak/Songify/internal/log"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// DefaultUsedCodeCollection is the Firestore collection used when none is configured.
const DefaultUsedCodeCollection = "used_authorization_codes"

// FirestoreUsedCodes is a UsedCodeStore shared by every instance of the
// service. Document ids are SHA-256 digests of the code, so codes themselves
// are never persisted.
type FirestoreUsedCodes struct {
	client     *firestore.Client
	collection string
	now        func() time.Time
}

var _ UsedCodeStore = (*FirestoreUsedCodes)(nil)

// usedCodeDoc is the Firestore document for one consumed code.
type usedCodeDoc struct {
	UsedAt    time.Time `firestore:"used_at"`
	ExpiresAt time.Time `firestore:"expires_at"`
}

// NewFirestoreUsedCodes connects to Firestore.
func NewFirestoreUsedCodes(ctx context.Context, projectID, database, collection string) (*FirestoreUsedCodes, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required")
	}
	if collection == "" {
		collection = DefaultUsedCodeCollection
	}

	var client *firestore.Client
	var err error
	if database != "" && database != "(default)" {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, database)
	} else {
		client, err = firestore.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	log.LogInfoWithFields("firestore", "Connected used-code store", map[string]any{
		"project":    projectID,
		"database":   database,
		"collection": collection,
	})

	return &FirestoreUsedCodes{
		client:     client,
		collection: collection,
		now:        time.Now,
	}, nil
}

func codeDocID(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

func (s *FirestoreUsedCodes) ref(code string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(codeDocID(code))
}

func (s *FirestoreUsedCodes) IsUsed(ctx context.Context, code string) (bool, error) {
	snap, err := s.ref(code).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return false, nil
		}
		return false, fmt.Errorf("failed to get used code: %w", err)
	}

	var doc usedCodeDoc
	if err := snap.DataTo(&doc); err != nil {
		return false, fmt.Errorf("failed to unmarshal used code: %w", err)
	}
	return s.now().Before(doc.ExpiresAt), nil
}

func (s *FirestoreUsedCodes) MarkUsed(ctx context.Context, code string, ttl time.Duration) error {
	now := s.now()
	_, err := s.ref(code).Set(ctx, usedCodeDoc{UsedAt: now, ExpiresAt: now.Add(ttl)})
	if err != nil {
		return fmt.Errorf("failed to mark code used: %w", err)
	}
	return nil
}

// MarkIfUnused runs the check and the write in one transaction. An expired
// document left behind by a missed sweep is overwritten.
func (s *FirestoreUsedCodes) MarkIfUnused(ctx context.Context, code string, ttl time.Duration) (bool, error) {
	ref := s.ref(code)
	var marked bool

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		marked = false
		now := s.now()

		snap, err := tx.Get(ref)
		if err != nil && status.Code(err) != codes.NotFound {
			return fmt.Errorf("failed to get used code: %w", err)
		}
		if err == nil {
			var doc usedCodeDoc
			if err := snap.DataTo(&doc); err != nil {
				return fmt.Errorf("failed to unmarshal used code: %w", err)
			}
			if now.Before(doc.ExpiresAt) {
				return nil
			}
		}

		marked = true
		return tx.Set(ref, usedCodeDoc{UsedAt: now, ExpiresAt: now.Add(ttl)})
	})
	if err != nil {
		return false, fmt.Errorf("failed to mark code used: %w", err)
	}
	return marked, nil
}

func (s *FirestoreUsedCodes) Remove(ctx context.Context, code string) error {
	if _, err := s.ref(code).Delete(ctx); err != nil && status.Code(err) != codes.NotFound {
		return fmt.Errorf("failed to remove used code: %w", err)
	}
	return nil
}

func (s *FirestoreUsedCodes) Count(ctx context.Context) (int, error) {
	iter := s.client.Collection(s.collection).
		Where("expires_at", ">", s.now()).
		Documents(ctx)
	defer iter.Stop()

	n := 0
	for {
		_, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return n, fmt.Errorf("failed to iterate used codes: %w", err)
		}
		n++
	}
	return n, nil
}

func (s *FirestoreUsedCodes) CleanupExpired(ctx context.Context) (int, error) {
	iter := s.client.Collection(s.collection).
		Where("expires_at", "<=", s.now()).
		Documents(ctx)
	defer iter.Stop()

	count := 0
	batch := s.client.Batch()
	batchSize := 0
	const maxBatchSize = 500 // Firestore batch write limit

	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return count, fmt.Errorf("failed to iterate expired codes: %w", err)
		}

		batch.Delete(doc.Ref)
		batchSize++
		count++

		if batchSize >= maxBatchSize {
			if _, err := batch.Commit(ctx); err != nil {
				return count, fmt.Errorf("failed to commit batch: %w", err)
			}
			batch = s.client.Batch()
			batchSize = 0
		}
	}

	if batchSize > 0 {
		if _, err := batch.Commit(ctx); err != nil {
			return count, fmt.Errorf("failed to commit final batch: %w", err)
		}
	}

	return count, nil
}

func (s *FirestoreUsedCodes) Close() error {
	return s.client.Close()
}
