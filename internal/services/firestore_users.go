package services

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/ytakahashi/team-task-tracker/internal/models"
)

type FirestoreUserRepository struct {
	col *firestore.CollectionRef
}

func decodeUser(doc *firestore.DocumentSnapshot) (*models.User, error) {
	var d userDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user %s: %w", doc.Ref.ID, err)
	}
	return fromUserDoc(doc.Ref.ID, &d), nil
}

func (r *FirestoreUserRepository) FindByID(ctx context.Context, uid string) (*models.User, error) {
	doc, err := r.col.Doc(uid).Get(ctx)
	if isNotFound(err) {
		return nil, fmt.Errorf("%w: %s", models.ErrUserNotFound, uid)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", uid, err)
	}
	return decodeUser(doc)
}

func (r *FirestoreUserRepository) FindAll(ctx context.Context) ([]*models.User, error) {
	users, err := collect(r.col.Documents(ctx), decodeUser)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (r *FirestoreUserRepository) Save(ctx context.Context, user *models.User) error {
	if _, err := r.col.Doc(user.UID).Set(ctx, toUserDoc(user)); err != nil {
		return fmt.Errorf("failed to save user %s: %w", user.UID, err)
	}
	return nil
}

func (r *FirestoreUserRepository) update(ctx context.Context, uid string, updates []firestore.Update) error {
	_, err := r.col.Doc(uid).Update(ctx, updates)
	if isNotFound(err) {
		return fmt.Errorf("%w: %s", models.ErrUserNotFound, uid)
	}
	if err != nil {
		return fmt.Errorf("failed to update user %s: %w", uid, err)
	}
	return nil
}

func (r *FirestoreUserRepository) UpdateLastLogin(ctx context.Context, uid string, at time.Time) error {
	return r.update(ctx, uid, []firestore.Update{
		{Path: "lastLoginAt", Value: at.Truncate(storePrecision)},
	})
}

func (r *FirestoreUserRepository) UpdateCalendarTokens(ctx context.Context, uid string, tokens *models.CalendarTokens) error {
	var tokensValue interface{}
	if tokens != nil {
		tokensValue = toTokensDoc(tokens)
	}
	return r.update(ctx, uid, []firestore.Update{
		{Path: "calendarConnected", Value: tokens != nil},
		{Path: "calendarTokens", Value: tokensValue},
	})
}

func (r *FirestoreUserRepository) SetAdmin(ctx context.Context, uid string, isAdmin bool) error {
	return r.update(ctx, uid, []firestore.Update{
		{Path: "isAdmin", Value: isAdmin},
	})
}

func (r *FirestoreUserRepository) Delete(ctx context.Context, uid string) error {
	if _, err := r.col.Doc(uid).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete user %s: %w", uid, err)
	}
	return nil
}

func (r *FirestoreUserRepository) SubscribeByID(ctx context.Context, uid string, fn func(*models.User)) Unsubscribe {
	return listen(ctx, func(ctx context.Context, l *listener) {
		iter := r.col.Doc(uid).Snapshots(ctx)
		defer iter.Stop()

		for {
			snap, err := iter.Next()
			if err != nil {
				snapshotEnded(ctx, "user", err)
				return
			}
			var user *models.User
			if snap.Exists() {
				user, err = decodeUser(snap)
				if err != nil {
					snapshotEnded(ctx, "user", err)
					continue
				}
			}
			l.deliver(func() { fn(user) })
		}
	})
}
