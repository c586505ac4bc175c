package services

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/ytakahashi/team-task-tracker/internal/models"
)

// FirestoreChannelRepository keeps one watch channel per user, keyed by uid.
type FirestoreChannelRepository struct {
	col *firestore.CollectionRef
}

func decodeChannel(doc *firestore.DocumentSnapshot) (*models.CalendarChannel, error) {
	var d channelDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, fmt.Errorf("failed to unmarshal channel %s: %w", doc.Ref.ID, err)
	}
	return fromChannelDoc(doc.Ref.ID, &d), nil
}

func (r *FirestoreChannelRepository) FindByUID(ctx context.Context, uid string) (*models.CalendarChannel, error) {
	doc, err := r.col.Doc(uid).Get(ctx)
	if isNotFound(err) {
		return nil, fmt.Errorf("%w: %s", models.ErrChannelNotFound, uid)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get channel for %s: %w", uid, err)
	}
	return decodeChannel(doc)
}

func (r *FirestoreChannelRepository) FindAll(ctx context.Context) ([]*models.CalendarChannel, error) {
	channels, err := collect(r.col.Documents(ctx), decodeChannel)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	return channels, nil
}

func (r *FirestoreChannelRepository) Save(ctx context.Context, ch *models.CalendarChannel) error {
	if _, err := r.col.Doc(ch.UID).Set(ctx, toChannelDoc(ch)); err != nil {
		return fmt.Errorf("failed to save channel for %s: %w", ch.UID, err)
	}
	return nil
}

func (r *FirestoreChannelRepository) Delete(ctx context.Context, uid string) error {
	if _, err := r.col.Doc(uid).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete channel for %s: %w", uid, err)
	}
	return nil
}
