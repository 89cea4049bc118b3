package db

import (
	"context"
	"fmt"
	"sort"

	"cloud.google.com/go/firestore"
	"github.com/ukydev/fleet-manager/internal/errs"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore implements DocumentStore on Cloud Firestore. Nested
// collection paths are passed to Firestore unchanged.
type FirestoreStore struct {
	Client *firestore.Client
}

// NewFirestoreStore creates a Firestore client for projectID. If
// credentialsFile is empty, application-default credentials are used
// (or the emulator when FIRESTORE_EMULATOR_HOST is set).
func NewFirestoreStore(ctx context.Context, projectID, credentialsFile string) (*FirestoreStore, error) {
	opts := []option.ClientOption{}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore.NewClient: %w", err)
	}
	return &FirestoreStore{Client: client}, nil
}

// Close releases the underlying client.
func (s *FirestoreStore) Close() error {
	return s.Client.Close()
}

func (s *FirestoreStore) collection(path string) (*firestore.CollectionRef, error) {
	if s.Client == nil {
		return nil, fmt.Errorf("firestore client is nil")
	}
	ref := s.Client.Collection(path)
	if ref == nil {
		return nil, fmt.Errorf("invalid collection path %q", path)
	}
	return ref, nil
}

// Query returns documents of collection matching every filter.
func (s *FirestoreStore) Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error) {
	ref, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	q := ref.Query
	for _, f := range filters {
		q = q.Where(f.Field, "==", f.Value)
	}

	snaps, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, errs.Unavailable("query", collection, err)
	}
	docs := make([]Document, 0, len(snaps))
	for _, snap := range snaps {
		docs = append(docs, fromSnapshot(snap))
	}
	return docs, nil
}

// Get finds a document by id.
func (s *FirestoreStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	ref, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	snap, err := ref.Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("%s/%s: %w", collection, id, errs.ErrNotFound)
		}
		return nil, errs.Unavailable("get", collection, err)
	}
	doc := fromSnapshot(snap)
	return &doc, nil
}

// Update sets fields on an existing document.
func (s *FirestoreStore) Update(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	ref, err := s.collection(collection)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	updates := make([]firestore.Update, 0, len(keys))
	for _, k := range keys {
		updates = append(updates, firestore.Update{Path: k, Value: fields[k]})
	}

	if _, err := ref.Doc(id).Update(ctx, updates); err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("%s/%s: %w", collection, id, errs.ErrNotFound)
		}
		return errs.Unavailable("update", collection, err)
	}
	return nil
}

// Create adds a document with a generated id and returns the id.
func (s *FirestoreStore) Create(ctx context.Context, collection string, fields map[string]interface{}) (string, error) {
	ref, err := s.collection(collection)
	if err != nil {
		return "", err
	}
	doc, _, err := ref.Add(ctx, fields)
	if err != nil {
		return "", errs.Unavailable("create", collection, err)
	}
	return doc.ID, nil
}

func fromSnapshot(snap *firestore.DocumentSnapshot) Document {
	return Document{ID: snap.Ref.ID, Fields: Fields(normalizeMap(snap.Data()))}
}
