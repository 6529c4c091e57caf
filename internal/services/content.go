package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"content-market/internal/database"
	"content-market/internal/models"
	"content-market/pkg/logging"
)

// NewContent is a content upload.
type NewContent struct {
	CreatorID      uint
	UploaderID     uint
	Price          int64
	Classification models.ContentClassification
	MediaType      models.MediaType
	MediaRef       string
	Caption        string
}

// ContentService publishes content and fans out subscriber notifications.
type ContentService struct {
	store     *database.Store
	fanout    *NotificationFanout
	publisher EventPublisher
}

func NewContentService(store *database.Store, fanout *NotificationFanout, publisher EventPublisher) *ContentService {
	return &ContentService{store: store, fanout: fanout, publisher: publisher}
}

// PublishContent stores the item and bumps the creator content counter in
// one transaction, then creates notifications for active subscribers. A
// fan-out failure is logged; the content stays published and the
// notifications can be created again later.
func (s *ContentService) PublishContent(ctx context.Context, req NewContent) (*models.ContentItem, int, error) {
	if req.Price < 0 {
		return nil, 0, invariant("negative price %d", req.Price)
	}
	if strings.TrimSpace(req.MediaRef) == "" {
		return nil, 0, invariant("content without media")
	}
	switch req.MediaType {
	case models.MediaPhoto, models.MediaVideo:
	default:
		return nil, 0, invariant("unknown media type %q", req.MediaType)
	}
	switch req.Classification {
	case models.ContentDemo, models.ContentPremium:
	default:
		return nil, 0, invariant("unknown classification %q", req.Classification)
	}

	item := &models.ContentItem{
		CreatorID:      req.CreatorID,
		UploaderID:     req.UploaderID,
		Price:          req.Price,
		Classification: req.Classification,
		MediaType:      req.MediaType,
		MediaRef:       req.MediaRef,
		Caption:        req.Caption,
		IsAvailable:    true,
	}

	err := s.store.Transaction(ctx, func(tx *database.Store) error {
		creator, err := tx.GetCreator(ctx, req.CreatorID)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return reasonError(ErrNotFound, ReasonCreatorNotFound)
			}
			return err
		}
		if creator.Status != models.CreatorApproved {
			return reasonError(ErrInvalidState, ReasonCreatorNotApproved)
		}

		if err := tx.CreateContent(ctx, item); err != nil {
			return err
		}
		return tx.AdjustCreatorCounters(ctx, creator.ID, 0, 1)
	})
	if err != nil {
		if ReasonOf(err) != "" {
			return nil, 0, err
		}
		return nil, 0, fmt.Errorf("publish content: %w", err)
	}

	logging.Infof("Content %d published by creator %d", item.ID, item.CreatorID)

	created, err := s.fanout.CreateForNewContent(ctx, item.CreatorID, item.ID)
	if err != nil {
		logging.Errorf("Failed to create notifications for content %d: %v", item.ID, err)
	}

	publishEvent(ctx, s.publisher, EventContentPublished, ContentPublishedEvent{
		ContentID:     item.ID,
		CreatorID:     item.CreatorID,
		Price:         item.Price,
		Notifications: created,
		Timestamp:     item.CreatedAt,
	})
	return item, created, nil
}
