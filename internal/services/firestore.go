package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	tasksCollection         = "tasks"
	usersCollection         = "users"
	allowedEmailsCollection = "allowedEmails"
	channelsCollection      = "calendarChannels"
)

// FirestoreService is the Firestore backed Store.
type FirestoreService struct {
	client *firestore.Client
}

var _ Store = (*FirestoreService)(nil)

func NewFirestoreService(projectID string) (*FirestoreService, error) {
	ctx := context.Background()
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return &FirestoreService{
		client: client,
	}, nil
}

func (fs *FirestoreService) Close() error {
	return fs.client.Close()
}

func (fs *FirestoreService) Tasks() TaskRepository {
	return &FirestoreTaskRepository{client: fs.client, col: fs.client.Collection(tasksCollection)}
}

func (fs *FirestoreService) Users() UserRepository {
	return &FirestoreUserRepository{col: fs.client.Collection(usersCollection)}
}

func (fs *FirestoreService) AllowedEmails() AllowedEmailRepository {
	return &FirestoreAllowedEmailRepository{col: fs.client.Collection(allowedEmailsCollection)}
}

func (fs *FirestoreService) Channels() ChannelRepository {
	return &FirestoreChannelRepository{col: fs.client.Collection(channelsCollection)}
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// collect drains a document iterator, decoding each document with decode.
func collect[T any](iter *firestore.DocumentIterator, decode func(*firestore.DocumentSnapshot) (T, error)) ([]T, error) {
	defer iter.Stop()

	var out []T
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate documents: %w", err)
		}

		v, err := decode(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}

	return out, nil
}

// snapshotEnded reports whether a listener error is the normal result of its
// context being cancelled, logging it otherwise.
func snapshotEnded(ctx context.Context, what string, err error) {
	if ctx.Err() != nil || errors.Is(err, iterator.Done) || status.Code(err) == codes.Canceled {
		return
	}
	slog.Error("snapshot listener stopped", "listener", what, "error", err)
}
