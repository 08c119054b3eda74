package service

import (
	"context"
	"fmt"
	"time"

	"github.com/alanyoungcy/lmsrmarket/internal/domain"
)

// PublishDescription stores d in content-addressed storage and returns it
// with ContentHash set.
func (s *MarketService) PublishDescription(ctx context.Context, d domain.EventDescription) (domain.EventDescription, error) {
	start := time.Now()
	if err := d.Validate(); err != nil {
		return domain.EventDescription{}, fmt.Errorf("market_service: publish description: %w", err)
	}
	if _, err := s.conns.Get(ctx); err != nil {
		return domain.EventDescription{}, err
	}

	hash, err := s.publisher.Publish(ctx, d)
	if err != nil {
		s.failed(ctx, domain.StepDescriptionPublished, d.Title, err, start)
		return domain.EventDescription{}, fmt.Errorf("market_service: publish description: %w", err)
	}
	if err := s.settle(ctx); err != nil {
		return domain.EventDescription{}, err
	}
	d.ContentHash = hash

	s.completed(ctx, domain.StepDescriptionPublished, domain.RecordDescription, hash, "", d, map[string]any{
		"title":    d.Title,
		"outcomes": len(d.Outcomes),
	}, start)
	return d, nil
}

// Description fetches a published description by content hash.
func (s *MarketService) Description(ctx context.Context, hash string) (domain.EventDescription, error) {
	d, err := s.publisher.Fetch(ctx, hash)
	if err != nil {
		return domain.EventDescription{}, fmt.Errorf("market_service: description %s: %w", hash, err)
	}
	return d, nil
}
