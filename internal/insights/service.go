package insights

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/plotforge/plotforge/internal/catalog"
	perrors "github.com/plotforge/plotforge/internal/errors"
	"github.com/plotforge/plotforge/internal/events"
)

// Service answers insight requests, serving from the catalog cache when the
// prompt for the session's profile has been answered before.
type Service struct {
	client *Client
	cat    catalog.Catalog
	bus    *events.Bus
}

// NewService wires the insight client to the catalog cache. bus may be nil.
func NewService(client *Client, cat catalog.Catalog, bus *events.Bus) *Service {
	return &Service{client: client, cat: cat, bus: bus}
}

// Available reports whether the service can reach the model API.
func (s *Service) Available() bool {
	return s.client != nil && s.client.Configured()
}

// Insight is one answered insight request.
type Insight struct {
	SessionID string    `json:"session_id"`
	Model     string    `json:"model"`
	Content   string    `json:"content"`
	CacheHit  bool      `json:"cache_hit"`
	CreatedAt time.Time `json:"created_at"`
}

// ForSession returns insights for a session's dataset. The prompt is built
// from the upload-time profile and hashed; a cached answer for the same hash
// short-circuits the API call unless force is set.
func (s *Service) ForSession(ctx context.Context, sessionID string, force bool) (*Insight, error) {
	sess, err := s.cat.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, catalog.ErrSessionNotFound) {
			return nil, perrors.NewNotFoundError(perrors.CodeSessionNotFound,
				"session "+sessionID+" not found")
		}
		return nil, err
	}
	prof, err := sess.Profile()
	if err != nil {
		return nil, err
	}
	if prof == nil {
		return nil, perrors.NewInsightsError(perrors.CodeInsightsUnavailable,
			"session has no stored profile", nil)
	}

	prompt := BuildPrompt(prof)
	hash := PromptHash(prompt)

	if !force {
		cached, err := s.cat.GetInsight(ctx, sessionID, hash)
		if err != nil {
			return nil, err
		}
		if cached != nil {
			s.publish(sessionID, true)
			return &Insight{
				SessionID: cached.SessionID,
				Model:     cached.Model,
				Content:   cached.Content,
				CacheHit:  true,
				CreatedAt: cached.CreatedAt,
			}, nil
		}
	}

	if !s.Available() {
		return nil, perrors.NewInsightsError(perrors.CodeInsightsUnavailable,
			"no Gemini API key configured", nil)
	}

	content, err := s.client.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	rec := &catalog.InsightRecord{
		SessionID:  sessionID,
		PromptHash: hash,
		Model:      s.client.Model(),
		Content:    content,
		CreatedAt:  time.Now(),
	}
	if err := s.cat.PutInsight(ctx, rec); err != nil {
		// The answer is still good; losing the cache row only costs a
		// repeat API call later.
		log.Printf("[WARN] insights: failed to cache insight for session %s: %v", sessionID, err)
	}

	s.publish(sessionID, false)
	return &Insight{
		SessionID: rec.SessionID,
		Model:     rec.Model,
		Content:   rec.Content,
		CacheHit:  false,
		CreatedAt: rec.CreatedAt,
	}, nil
}

func (s *Service) publish(sessionID string, cacheHit bool) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.Event{
		Type:      events.InsightsReady,
		SessionID: sessionID,
		CacheHit:  cacheHit,
	})
}
