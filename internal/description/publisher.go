// Package description publishes event descriptions to content-addressed
// blob storage.
package description

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/alanyoungcy/lmsrmarket/internal/domain"
)

var hashPattern = regexp.MustCompile(`^0x[0-9a-f]{64}$`)

// Publisher stores descriptions under their keccak256 content hash.
type Publisher struct {
	blobs  domain.BlobStore
	logger *slog.Logger
}

func NewPublisher(blobs domain.BlobStore, logger *slog.Logger) *Publisher {
	return &Publisher{blobs: blobs, logger: logger.With(slog.String("component", "description"))}
}

// Publish stores d and returns its content hash. Publishing the same
// description twice yields the same hash and writes the object once.
func (p *Publisher) Publish(ctx context.Context, d domain.EventDescription) (string, error) {
	if err := d.Validate(); err != nil {
		return "", err
	}
	hash, body, err := Canonical(d)
	if err != nil {
		return "", err
	}

	key := objectKey(hash)
	exists, err := p.blobs.Exists(ctx, key)
	if err != nil {
		return "", fmt.Errorf("description: publish: %w", err)
	}
	if exists {
		p.logger.DebugContext(ctx, "description already published", slog.String("hash", hash))
		return hash, nil
	}
	if err := p.blobs.Put(ctx, key, bytes.NewReader(body), "application/json"); err != nil {
		return "", fmt.Errorf("description: publish: %w", err)
	}
	p.logger.InfoContext(ctx, "description published",
		slog.String("hash", hash),
		slog.String("title", d.Title),
	)
	return hash, nil
}

// Fetch reads a published description back.
func (p *Publisher) Fetch(ctx context.Context, hash string) (domain.EventDescription, error) {
	if !hashPattern.MatchString(hash) {
		return domain.EventDescription{}, fmt.Errorf("%w: malformed content hash %q", domain.ErrInvalidRecord, hash)
	}
	rc, err := p.blobs.Get(ctx, objectKey(hash))
	if err != nil {
		return domain.EventDescription{}, fmt.Errorf("description: fetch: %w", err)
	}
	defer rc.Close()

	var d domain.EventDescription
	if err := json.NewDecoder(rc).Decode(&d); err != nil {
		return domain.EventDescription{}, fmt.Errorf("description: decode %s: %w", hash, err)
	}
	d.ContentHash = hash
	return d, nil
}

// Canonical returns the content hash of d and the exact bytes that are
// stored. Any previous ContentHash on d is ignored and the resolution date
// is normalised to UTC.
func Canonical(d domain.EventDescription) (string, []byte, error) {
	d.ContentHash = ""
	d.ResolutionDate = d.ResolutionDate.UTC()
	if d.Outcomes == nil {
		d.Outcomes = []string{}
	}
	body, err := json.Marshal(d)
	if err != nil {
		return "", nil, fmt.Errorf("description: encode: %w", err)
	}
	return ethcrypto.Keccak256Hash(body).Hex(), body, nil
}

func objectKey(hash string) string {
	return "descriptions/" + hash + ".json"
}
