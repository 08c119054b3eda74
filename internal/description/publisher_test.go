package description_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/lmsrmarket/internal/description"
	"github.com/alanyoungcy/lmsrmarket/internal/domain"
)

type memBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
	putErr  error
}

func newMemBlobs() *memBlobs { return &memBlobs{objects: map[string][]byte{}} }

func (m *memBlobs) Put(_ context.Context, path string, data io.Reader, _ string) error {
	if m.putErr != nil {
		return m.putErr
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[path] = b
	m.puts++
	return nil
}

func (m *memBlobs) Get(_ context.Context, path string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *memBlobs) Exists(_ context.Context, path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[path]
	return ok, nil
}

func sample() domain.EventDescription {
	return domain.EventDescription{
		Title:          "Will it rain in Berlin on 1 May?",
		Description:    "Resolves YES if DWD reports precipitation.",
		Outcomes:       []string{"Yes", "No"},
		ResolutionDate: time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC),
	}
}

func newPublisher(blobs *memBlobs) *description.Publisher {
	return description.NewPublisher(blobs, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestPublish_ContentAddressed(t *testing.T) {
	blobs := newMemBlobs()
	p := newPublisher(blobs)

	hash, err := p.Publish(context.Background(), sample())
	require.NoError(t, err)
	assert.Regexp(t, `^0x[0-9a-f]{64}$`, hash)

	again, err := p.Publish(context.Background(), sample())
	require.NoError(t, err)
	assert.Equal(t, hash, again)
	assert.Equal(t, 1, blobs.puts)
}

func TestPublish_DifferentContentDifferentHash(t *testing.T) {
	p := newPublisher(newMemBlobs())

	a, err := p.Publish(context.Background(), sample())
	require.NoError(t, err)

	other := sample()
	other.Outcomes = []string{"Yes", "No", "Snow"}
	b, err := p.Publish(context.Background(), other)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestPublish_TimezoneDoesNotChangeHash(t *testing.T) {
	d := sample()
	local := d
	local.ResolutionDate = d.ResolutionDate.In(time.FixedZone("CEST", 2*3600))

	h1, _, err := description.Canonical(d)
	require.NoError(t, err)
	h2, _, err := description.Canonical(local)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestPublish_StorageFailurePropagates(t *testing.T) {
	blobs := newMemBlobs()
	blobs.putErr = errors.New("bucket unavailable")

	_, err := newPublisher(blobs).Publish(context.Background(), sample())
	require.ErrorContains(t, err, "bucket unavailable")
}

func TestPublish_RejectsInvalid(t *testing.T) {
	blobs := newMemBlobs()
	d := sample()
	d.Title = " "

	_, err := newPublisher(blobs).Publish(context.Background(), d)
	require.ErrorIs(t, err, domain.ErrInvalidRecord)
	assert.Zero(t, blobs.puts)
}

func TestFetch(t *testing.T) {
	p := newPublisher(newMemBlobs())
	hash, err := p.Publish(context.Background(), sample())
	require.NoError(t, err)

	got, err := p.Fetch(context.Background(), hash)
	require.NoError(t, err)
	assert.Equal(t, hash, got.ContentHash)
	assert.Equal(t, sample().Title, got.Title)
	assert.Equal(t, sample().Outcomes, got.Outcomes)

	_, err = p.Fetch(context.Background(), "0x"+string(bytes.Repeat([]byte("a"), 64)))
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = p.Fetch(context.Background(), "nope")
	require.ErrorIs(t, err, domain.ErrInvalidRecord)
}
