package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snaplink/internal/apperrs"
	"snaplink/internal/cache"
	"snaplink/internal/entities"
	"snaplink/internal/models"
)

// fakeRepo is an in-memory LinkRepository enforcing code uniqueness the way
// the real table's constraint does.
type fakeRepo struct {
	mu        sync.Mutex
	links     map[string]*entities.ShortLink
	findCalls int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{links: make(map[string]*entities.ShortLink)}
}

func (r *fakeRepo) Create(_ context.Context, code, longURL string, owner *string, expiresAt *time.Time) (*entities.ShortLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.links[code]; exists {
		return nil, fmt.Errorf("code %q: %w", code, apperrs.ErrConflict)
	}
	link := &entities.ShortLink{
		ID:        fmt.Sprintf("id-%s", code),
		Code:      code,
		LongURL:   longURL,
		Owner:     owner,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
	r.links[code] = link
	return link, nil
}

func (r *fakeRepo) FindByCode(_ context.Context, code string) (*entities.ShortLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findCalls++
	link, ok := r.links[code]
	if !ok {
		return nil, apperrs.ErrNotFound
	}
	cp := *link
	return &cp, nil
}

func (r *fakeRepo) DeleteByCode(_ context.Context, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.links, code)
	return nil
}

func (r *fakeRepo) DeleteExpiredBefore(_ context.Context, t time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for code, link := range r.links {
		if link.ExpiresAt != nil && link.ExpiresAt.Before(t) {
			delete(r.links, code)
			count++
		}
	}
	return count, nil
}

func (r *fakeRepo) Stats(ctx context.Context, code string) (*entities.ShortLink, error) {
	return r.FindByCode(ctx, code)
}

func (r *fakeRepo) ListByOwner(_ context.Context, owner string) ([]*entities.ShortLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entities.ShortLink
	for _, link := range r.links {
		if link.Owner != nil && *link.Owner == owner {
			cp := *link
			out = append(out, &cp)
		}
	}
	return out, nil
}

// fakeCache is an in-memory LinkCache. When broken is set, every call fails,
// which must degrade to miss behavior, never to request failures.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string]cache.Entry
	broken  bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]cache.Entry)}
}

func (c *fakeCache) Put(_ context.Context, code string, entry cache.Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken {
		return errors.New("cache down")
	}
	c.entries[code] = entry
	return nil
}

func (c *fakeCache) Get(_ context.Context, code string) (cache.Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken {
		return cache.Entry{}, errors.New("cache down")
	}
	entry, ok := c.entries[code]
	if !ok {
		return cache.Entry{}, cache.ErrCacheMiss
	}
	return entry, nil
}

func (c *fakeCache) Delete(_ context.Context, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken {
		return errors.New("cache down")
	}
	delete(c.entries, code)
	return nil
}

// fakeSequence counts up from 1 under a mutex, like Redis INCR.
type fakeSequence struct {
	mu   sync.Mutex
	n    int64
	fail bool
}

func (s *fakeSequence) Next(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return 0, apperrs.ErrUnavailable
	}
	s.n++
	return s.n, nil
}

type fixture struct {
	svc   *linkService
	repo  *fakeRepo
	cache *fakeCache
	seq   *fakeSequence
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newFakeRepo()
	linkCache := newFakeCache()
	seq := &fakeSequence{}
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	svc := NewLinkService(repo, linkCache, seq, "https://snap.link", log).(*linkService)
	return &fixture{svc: svc, repo: repo, cache: linkCache, seq: seq}
}

func TestCreateGeneratedAndResolve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.svc.Create(ctx, &models.CreateLinkRequest{LongURL: "https://example.com/a"}, nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(resp.Code), 1)
	assert.Equal(t, "https://snap.link/"+resp.Code, resp.ShortURL)
	assert.Nil(t, resp.ExpiresAt)

	longURL, err := f.svc.Resolve(ctx, resp.Code)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a", longURL)
}

func TestCreateCustomCodeConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	custom := "my-link"

	first, err := f.svc.Create(ctx, &models.CreateLinkRequest{LongURL: "https://example.com/1", CustomCode: &custom}, nil)
	require.NoError(t, err)
	assert.Equal(t, "my-link", first.Code)

	_, err = f.svc.Create(ctx, &models.CreateLinkRequest{LongURL: "https://example.com/2", CustomCode: &custom}, nil)
	assert.ErrorIs(t, err, apperrs.ErrConflict)
}

func TestCreateCustomCodeRace(t *testing.T) {
	f := newFixture(t)
	custom := "popular"
	const n = 20

	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.Create(context.Background(), &models.CreateLinkRequest{
				LongURL:    fmt.Sprintf("https://example.com/%d", i),
				CustomCode: &custom,
			}, nil)
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	successes, conflicts := 0, 0
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, apperrs.ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, conflicts)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	longURL := "https://example.com/"
	for len(longURL) <= 2048 {
		longURL += "x"
	}

	tests := []struct {
		name    string
		url     string
		wantErr error
	}{
		{"empty", "", apperrs.ErrInvalidURL},
		{"too long", longURL, apperrs.ErrInvalidURL},
		{"ftp scheme", "ftp://example.com", apperrs.ErrUnsupportedScheme},
		{"mailto scheme", "mailto:a@example.com", apperrs.ErrUnsupportedScheme},
		{"missing host", "https:///path", apperrs.ErrInvalidURL},
		{"self reference", "https://snap.link/abc", apperrs.ErrInvalidURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, &models.CreateLinkRequest{LongURL: tt.url}, nil)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	// Nothing may be written by a rejected request.
	assert.Empty(t, f.repo.links)
}

func TestCreateCustomCodeValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bad := func(code string) *string { return &code }

	_, err := f.svc.Create(ctx, &models.CreateLinkRequest{LongURL: "https://example.com", CustomCode: bad("has space")}, nil)
	assert.ErrorIs(t, err, apperrs.ErrInvalidURL)

	_, err = f.svc.Create(ctx, &models.CreateLinkRequest{LongURL: "https://example.com", CustomCode: bad("waytoolongforacode")}, nil)
	assert.ErrorIs(t, err, apperrs.ErrInvalidURL)

	_, err = f.svc.Create(ctx, &models.CreateLinkRequest{LongURL: "https://example.com", CustomCode: bad("health")}, nil)
	assert.ErrorIs(t, err, apperrs.ErrConflict)
}

func TestResolveUnknownCode(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Resolve(context.Background(), "nope")
	assert.ErrorIs(t, err, apperrs.ErrNotFound)
}

func TestResolveExpiredIsGoneAndStaysGone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	resp, err := f.svc.Create(ctx, &models.CreateLinkRequest{LongURL: "https://example.com", ExpiresAt: &past}, nil)
	require.NoError(t, err)

	_, err = f.svc.Resolve(ctx, resp.Code)
	assert.ErrorIs(t, err, apperrs.ErrGone)

	// Once Gone, later resolutions may be Gone or NotFound (depending on
	// whether the lazy purge has landed) but never Found again.
	for i := 0; i < 10; i++ {
		_, err = f.svc.Resolve(ctx, resp.Code)
		require.Error(t, err)
		require.Truef(t, errors.Is(err, apperrs.ErrGone) || errors.Is(err, apperrs.ErrNotFound),
			"resolution %d returned %v after Gone", i, err)
	}
}

func TestResolveExpiryBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	expiresAt := time.Now().Add(time.Hour)
	resp, err := f.svc.Create(ctx, &models.CreateLinkRequest{LongURL: "https://example.com", ExpiresAt: &expiresAt}, nil)
	require.NoError(t, err)

	// Valid before the expiry.
	_, err = f.svc.Resolve(ctx, resp.Code)
	require.NoError(t, err)

	// Advance the service clock past the expiry: the cache still holds the
	// entry, so this exercises the hit-but-logically-expired path.
	f.svc.now = func() time.Time { return expiresAt.Add(time.Second) }

	_, err = f.svc.Resolve(ctx, resp.Code)
	assert.ErrorIs(t, err, apperrs.ErrGone)
}

func TestResolveRepairsCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.repo.Create(ctx, "abc", "https://example.com", nil, nil)
	require.NoError(t, err)

	longURL, err := f.svc.Resolve(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", longURL)
	callsAfterMiss := f.repo.findCalls

	// Second resolution must be served from the repaired cache.
	longURL, err = f.svc.Resolve(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", longURL)
	assert.Equal(t, callsAfterMiss, f.repo.findCalls)
}

func TestResolveSurvivesBrokenCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.cache.broken = true

	resp, err := f.svc.Create(ctx, &models.CreateLinkRequest{LongURL: "https://example.com"}, nil)
	require.NoError(t, err, "cache failure must not fail creation")

	longURL, err := f.svc.Resolve(ctx, resp.Code)
	require.NoError(t, err, "cache failure must degrade to a store read")
	assert.Equal(t, "https://example.com", longURL)
}

func TestCreateSequenceUnavailable(t *testing.T) {
	f := newFixture(t)
	f.seq.fail = true

	_, err := f.svc.Create(context.Background(), &models.CreateLinkRequest{LongURL: "https://example.com"}, nil)
	assert.ErrorIs(t, err, apperrs.ErrUnavailable)
	assert.Empty(t, f.repo.links, "an aborted creation must leave no partial state")
}

func TestCreateGeneratedCollisionRetriesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Squat the code the next sequence value (1) will produce.
	_, err := f.repo.Create(ctx, "1", "https://squatter.example.com", nil, nil)
	require.NoError(t, err)

	resp, err := f.svc.Create(ctx, &models.CreateLinkRequest{LongURL: "https://example.com"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "2", resp.Code, "retry must use a fresh sequence value")
}

func TestDeleteInvalidatesCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.svc.Create(ctx, &models.CreateLinkRequest{LongURL: "https://example.com"}, nil)
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, resp.Code))

	_, err = f.svc.Resolve(ctx, resp.Code)
	assert.ErrorIs(t, err, apperrs.ErrNotFound)

	// Idempotent.
	assert.NoError(t, f.svc.Delete(ctx, resp.Code))
}

func TestOwnerAttribution(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := "team-infra"

	resp, err := f.svc.Create(ctx, &models.CreateLinkRequest{LongURL: "https://example.com"}, &owner)
	require.NoError(t, err)

	stats, err := f.svc.Stats(ctx, resp.Code)
	require.NoError(t, err)
	require.NotNil(t, stats.Owner)
	assert.Equal(t, owner, *stats.Owner)

	links, err := f.svc.ListByOwner(ctx, owner)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, resp.Code, links[0].Code)
}
