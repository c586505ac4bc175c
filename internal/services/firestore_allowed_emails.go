package services

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/ytakahashi/team-task-tracker/internal/models"
)

// FirestoreAllowedEmailRepository keys documents by the normalized email.
type FirestoreAllowedEmailRepository struct {
	col *firestore.CollectionRef
}

func decodeAllowedEmail(doc *firestore.DocumentSnapshot) (*models.AllowedEmail, error) {
	var d allowedEmailDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, fmt.Errorf("failed to unmarshal allowed email %s: %w", doc.Ref.ID, err)
	}
	return fromAllowedEmailDoc(doc.Ref.ID, &d), nil
}

func (r *FirestoreAllowedEmailRepository) FindAll(ctx context.Context) ([]*models.AllowedEmail, error) {
	emails, err := collect(r.col.Documents(ctx), decodeAllowedEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to list allowed emails: %w", err)
	}
	return emails, nil
}

func (r *FirestoreAllowedEmailRepository) Exists(ctx context.Context, email string) (bool, error) {
	_, err := r.col.Doc(models.NormalizeEmail(email)).Get(ctx)
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check allowed email: %w", err)
	}
	return true, nil
}

func (r *FirestoreAllowedEmailRepository) Add(ctx context.Context, allowed *models.AllowedEmail) error {
	if _, err := r.col.Doc(models.NormalizeEmail(allowed.Email)).Set(ctx, toAllowedEmailDoc(allowed)); err != nil {
		return fmt.Errorf("failed to add allowed email: %w", err)
	}
	return nil
}

func (r *FirestoreAllowedEmailRepository) Remove(ctx context.Context, email string) error {
	if _, err := r.col.Doc(models.NormalizeEmail(email)).Delete(ctx); err != nil {
		return fmt.Errorf("failed to remove allowed email: %w", err)
	}
	return nil
}

func (r *FirestoreAllowedEmailRepository) SubscribeAll(ctx context.Context, fn func([]*models.AllowedEmail)) Unsubscribe {
	return listen(ctx, func(ctx context.Context, l *listener) {
		iter := r.col.Snapshots(ctx)
		defer iter.Stop()

		for {
			snap, err := iter.Next()
			if err != nil {
				snapshotEnded(ctx, "allowed emails", err)
				return
			}
			docs, err := snap.Documents.GetAll()
			if err != nil {
				snapshotEnded(ctx, "allowed emails", err)
				return
			}
			emails := make([]*models.AllowedEmail, 0, len(docs))
			for _, doc := range docs {
				e, err := decodeAllowedEmail(doc)
				if err != nil {
					snapshotEnded(ctx, "allowed emails", err)
					continue
				}
				emails = append(emails, e)
			}
			l.deliver(func() { fn(emails) })
		}
	})
}
