package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"snaplink/internal/apperrs"
	"snaplink/internal/cache"
	"snaplink/internal/codec"
	"snaplink/internal/entities"
	"snaplink/internal/models"
	"snaplink/internal/repository"
	"snaplink/internal/sequence"
)

// LinkService is the business logic for creating and resolving short links.
type LinkService interface {
	Create(ctx context.Context, req *models.CreateLinkRequest, owner *string) (*models.CreateLinkResponse, error)
	Resolve(ctx context.Context, code string) (string, error)
	Delete(ctx context.Context, code string) error
	Stats(ctx context.Context, code string) (*models.LinkStatsResponse, error)
	ListByOwner(ctx context.Context, owner string) ([]*models.LinkStatsResponse, error)
}

const (
	maxLongURLLen  = 2048
	maxCodeLen     = 12
	cleanupTimeout = 5 * time.Second
)

// Codes that would shadow the service's own routes.
var reservedCodes = map[string]bool{
	"api":     true,
	"health":  true,
	"qrcode":  true,
	"shorten": true,
	"url":     true,
	"urls":    true,
}

var codePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

type linkService struct {
	repo    repository.LinkRepository
	cache   cache.LinkCache
	seq     sequence.Source
	log     *logrus.Logger
	baseURL string
	host    string // hostname of baseURL, for the self-reference check

	now func() time.Time // swapped out in tests
}

// NewLinkService creates the link service. baseURL is the public prefix of
// this service's redirect endpoint, e.g. "https://snap.link".
func NewLinkService(repo repository.LinkRepository, linkCache cache.LinkCache, seq sequence.Source, baseURL string, log *logrus.Logger) LinkService {
	host := ""
	if u, err := url.Parse(baseURL); err == nil {
		host = strings.ToLower(u.Hostname())
	}
	return &linkService{
		repo:    repo,
		cache:   linkCache,
		seq:     seq,
		log:     log,
		baseURL: strings.TrimRight(baseURL, "/"),
		host:    host,
		now:     time.Now,
	}
}

// validateLongURL enforces the input contract: non-empty, bounded length,
// http(s) scheme, a parseable host, and not pointing back at this service.
func (s *linkService) validateLongURL(longURL string) error {
	if longURL == "" {
		return fmt.Errorf("%w: empty", apperrs.ErrInvalidURL)
	}
	if len(longURL) > maxLongURLLen {
		return fmt.Errorf("%w: longer than %d characters", apperrs.ErrInvalidURL, maxLongURLLen)
	}

	u, err := url.Parse(longURL)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrs.ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: %q", apperrs.ErrUnsupportedScheme, u.Scheme)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("%w: missing host", apperrs.ErrInvalidURL)
	}
	if s.host != "" && strings.ToLower(u.Hostname()) == s.host {
		return fmt.Errorf("%w: target is this service itself", apperrs.ErrInvalidURL)
	}
	return nil
}

// validateCustomCode checks a caller-chosen code: 1-12 characters of
// letters, digits, hyphen or underscore, and not a reserved route word.
func validateCustomCode(code string) error {
	if code == "" || len(code) > maxCodeLen {
		return fmt.Errorf("%w: custom code must be 1-%d characters", apperrs.ErrInvalidURL, maxCodeLen)
	}
	if !codePattern.MatchString(code) {
		return fmt.Errorf("%w: custom code may only contain letters, digits, hyphens and underscores", apperrs.ErrInvalidURL)
	}
	if reservedCodes[strings.ToLower(code)] {
		return fmt.Errorf("code %q is reserved: %w", code, apperrs.ErrConflict)
	}
	return nil
}

// Create validates the request and writes the new link, either under a
// caller-chosen code or under a freshly generated one. All validation happens
// before any write; a failed request leaves no partial state behind.
func (s *linkService) Create(ctx context.Context, req *models.CreateLinkRequest, owner *string) (*models.CreateLinkResponse, error) {
	if err := s.validateLongURL(req.LongURL); err != nil {
		return nil, err
	}

	var expiresAt *time.Time
	if req.ExpiresAt != nil {
		utc := req.ExpiresAt.UTC()
		expiresAt = &utc
	}

	var link *entities.ShortLink
	var err error

	if req.CustomCode != nil && *req.CustomCode != "" {
		customCode := strings.TrimSpace(*req.CustomCode)
		if err := validateCustomCode(customCode); err != nil {
			return nil, err
		}
		// No availability pre-check: the unique constraint decides, which is
		// the only race-free way to arbitrate concurrent claims on a code.
		link, err = s.repo.Create(ctx, customCode, req.LongURL, owner, expiresAt)
		if err != nil {
			return nil, err
		}
	} else {
		link, err = s.createGenerated(ctx, req.LongURL, owner, expiresAt)
		if err != nil {
			return nil, err
		}
	}

	// Pre-warm the cache so the first redirect skips the database. Purely an
	// optimization; a failure must not fail the creation.
	if err := s.cache.Put(ctx, link.Code, cache.Entry{LongURL: link.LongURL, ExpiresAt: link.ExpiresAt}); err != nil {
		s.log.WithError(err).WithField("code", link.Code).Warn("cache pre-warm failed")
	}

	return &models.CreateLinkResponse{
		Code:      link.Code,
		LongURL:   link.LongURL,
		ShortURL:  fmt.Sprintf("%s/%s", s.baseURL, link.Code),
		ExpiresAt: link.ExpiresAt,
		CreatedAt: link.CreatedAt,
	}, nil
}

// createGenerated takes the next sequence value and encodes it. Sequence
// values are unique, so the insert cannot conflict with another generated
// code; a conflict means the code collided with a pre-existing custom code.
// That is an anomaly worth logging loudly, and it gets exactly one retry with
// a fresh value so a single unlucky collision does not fail the request.
func (s *linkService) createGenerated(ctx context.Context, longURL string, owner *string, expiresAt *time.Time) (*entities.ShortLink, error) {
	for attempt := 0; attempt < 2; attempt++ {
		n, err := s.seq.Next(ctx)
		if err != nil {
			return nil, err
		}
		code := codec.Encode(n)

		link, err := s.repo.Create(ctx, code, longURL, owner, expiresAt)
		if err == nil {
			return link, nil
		}
		if !errors.Is(err, apperrs.ErrConflict) {
			return nil, err
		}

		s.log.WithFields(logrus.Fields{
			"code":     code,
			"sequence": n,
		}).Error("generated code collided with an existing record; uniqueness invariant violated")
	}
	return nil, fmt.Errorf("generated code conflict persisted after retry: %w", apperrs.ErrUnavailable)
}

// Resolve maps a code to its destination URL.
//
// The cache is consulted first, but a hit is never proof of validity: the
// entry's logical expiry is re-checked against the clock on every hit,
// because the Redis TTL is only a staleness bound. On a miss the database is
// authoritative; expired rows are purged lazily and valid ones repair the
// cache on the way out.
func (s *linkService) Resolve(ctx context.Context, code string) (string, error) {
	now := s.now()

	entry, err := s.cache.Get(ctx, code)
	if err == nil {
		if entry.Expired(now) {
			// Don't block the response on cleanup; the next access retries it.
			s.cleanupAsync(code)
			return "", apperrs.ErrGone
		}
		return entry.LongURL, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		// Cache trouble degrades to a miss, never to a failed request.
		s.log.WithError(err).WithField("code", code).Warn("cache read failed, falling through to store")
	}

	link, err := s.repo.FindByCode(ctx, code)
	if errors.Is(err, apperrs.ErrNotFound) {
		return "", apperrs.ErrNotFound
	}
	if err != nil {
		// No fallback exists past the durable store; this is a hard failure.
		return "", fmt.Errorf("resolve %q: %w", code, err)
	}

	if link.Expired(now) {
		s.cleanup(ctx, code)
		return "", apperrs.ErrGone
	}

	if err := s.cache.Put(ctx, code, cache.Entry{LongURL: link.LongURL, ExpiresAt: link.ExpiresAt}); err != nil {
		s.log.WithError(err).WithField("code", code).Warn("cache repair failed")
	}

	return link.LongURL, nil
}

// cleanup purges an expired link from the store and the cache. Best-effort:
// failures are logged and left for the next access or the sweeper.
func (s *linkService) cleanup(ctx context.Context, code string) {
	if err := s.repo.DeleteByCode(ctx, code); err != nil {
		s.log.WithError(err).WithField("code", code).Warn("lazy purge of expired link failed")
	}
	if err := s.cache.Delete(ctx, code); err != nil {
		s.log.WithError(err).WithField("code", code).Warn("cache purge of expired link failed")
	}
}

func (s *linkService) cleanupAsync(code string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
		defer cancel()
		s.cleanup(ctx, code)
	}()
}

// Delete removes a link and invalidates its cache entry. Idempotent.
func (s *linkService) Delete(ctx context.Context, code string) error {
	if err := s.repo.DeleteByCode(ctx, code); err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, code); err != nil {
		s.log.WithError(err).WithField("code", code).Warn("cache invalidation failed")
	}
	return nil
}

// Stats returns the reporting view of a link, served from the replica path.
func (s *linkService) Stats(ctx context.Context, code string) (*models.LinkStatsResponse, error) {
	link, err := s.repo.Stats(ctx, code)
	if err != nil {
		return nil, err
	}
	return statsResponse(link), nil
}

// ListByOwner returns every link registered by owner, from the replica path.
func (s *linkService) ListByOwner(ctx context.Context, owner string) ([]*models.LinkStatsResponse, error) {
	links, err := s.repo.ListByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}

	responses := make([]*models.LinkStatsResponse, len(links))
	for i, link := range links {
		responses[i] = statsResponse(link)
	}
	return responses, nil
}

func statsResponse(link *entities.ShortLink) *models.LinkStatsResponse {
	return &models.LinkStatsResponse{
		Code:      link.Code,
		LongURL:   link.LongURL,
		Owner:     link.Owner,
		CreatedAt: link.CreatedAt,
		ExpiresAt: link.ExpiresAt,
	}
}
