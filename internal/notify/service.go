package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"offer-config-engine/internal/apperr"
	"offer-config-engine/internal/observability"
	"offer-config-engine/internal/storage"
)

const (
	maxBulkTokens   = 500
	bulkConcurrency = 8
)

type TokenStore interface {
	ActiveTokens(ctx context.Context, bundleID string, limit int) ([]storage.PushToken, error)
	DeactivatePushToken(ctx context.Context, token string) error
	LogRequest(ctx context.Context, r storage.RequestLog) (uuid.UUID, error)
	PushTokenStats(ctx context.Context) (storage.TokenStats, error)
	RequestStats(ctx context.Context) (storage.RequestStats, error)
}

// Service sends notifications through a Relay and keeps the token registry
// and request log in step with the outcome.
type Service struct {
	relay Relay
	store TokenStore
}

func NewService(relay Relay, store TokenStore) *Service {
	return &Service{relay: relay, store: store}
}

func (s *Service) RelayName() string { return s.relay.Name() }

func (s *Service) Send(ctx context.Context, m Message, client storage.Client) (Result, error) {
	if err := m.Validate(); err != nil {
		return Result{}, err
	}
	return s.deliver(ctx, m, client)
}

func (s *Service) deliver(ctx context.Context, m Message, client storage.Client) (Result, error) {
	res, err := s.relay.Send(ctx, m)
	status := storage.StatusProcessed
	switch {
	case err != nil:
		observability.NotificationsSent.WithLabelValues("error").Inc()
		status = storage.StatusFailed
	case res.Delivered:
		observability.NotificationsSent.WithLabelValues("delivered").Inc()
	default:
		observability.NotificationsSent.WithLabelValues("rejected").Inc()
		status = storage.StatusFailed
	}

	if res.Unregistered {
		if derr := s.store.DeactivatePushToken(ctx, m.Token); derr != nil {
			log.Warn().Err(derr).Msg("deactivate push token failed")
		}
	}
	if _, lerr := s.store.LogRequest(ctx, storage.RequestLog{
		Type:      storage.RequestNotification,
		Status:    status,
		UserAgent: client.UserAgent,
		IP:        client.IP,
		Metadata: map[string]any{
			"relay":     s.relay.Name(),
			"relay_id":  res.RelayID,
			"reason":    res.Reason,
			"title":     m.Title,
			"image_url": m.ImageURL,
			"icon_url":  m.IconURL,
		},
	}); lerr != nil {
		observability.StoreErrors.WithLabelValues("log_request").Inc()
		log.Warn().Err(lerr).Msg("log notification request failed")
	}
	return res, err
}

// BulkRequest targets Tokens, or when empty, every active token of BundleID.
type BulkRequest struct {
	Tokens   []string          `json:"tokens"`
	BundleID string            `json:"bundle_id"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	ImageURL string            `json:"image_url"`
	IconURL  string            `json:"icon_url"`
	Data     map[string]string `json:"data"`
}

type TokenResult struct {
	Token   string `json:"token"`
	Success bool   `json:"success"`
	RelayID string `json:"relay_id,omitempty"`
	Message string `json:"message,omitempty"`
}

type BulkSummary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

type BulkResult struct {
	Results []TokenResult `json:"results"`
	Summary BulkSummary   `json:"summary"`
}

func (s *Service) SendBulk(ctx context.Context, req BulkRequest, client storage.Client) (BulkResult, error) {
	if req.Title == "" || req.Body == "" {
		return BulkResult{}, apperr.New(apperr.InvalidPayload, "Missing required fields: title, body")
	}
	tokens := req.Tokens
	if len(tokens) == 0 {
		if req.BundleID == "" {
			return BulkResult{}, apperr.New(apperr.InvalidPayload, "Missing or invalid tokens array")
		}
		registered, err := s.store.ActiveTokens(ctx, req.BundleID, maxBulkTokens)
		if err != nil {
			return BulkResult{}, err
		}
		for _, t := range registered {
			tokens = append(tokens, t.Token)
		}
	}
	if len(tokens) > maxBulkTokens {
		return BulkResult{}, apperr.New(apperr.InvalidPayload, "Too many tokens in one request")
	}

	results := make([]TokenResult, len(tokens))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bulkConcurrency)
	for i, token := range tokens {
		i, token := i, token
		g.Go(func() error {
			m := Message{Token: token, Title: req.Title, Body: req.Body, ImageURL: req.ImageURL, IconURL: req.IconURL, Data: req.Data}
			tr := TokenResult{Token: token}
			if err := m.Validate(); err != nil {
				tr.Message = apperr.Message(err)
				results[i] = tr
				return nil
			}
			res, err := s.deliver(gctx, m, client)
			switch {
			case err != nil:
				tr.Message = apperr.Message(err)
			case res.Delivered:
				tr.Success, tr.RelayID = true, res.RelayID
				tr.Message = "Notification sent successfully"
			default:
				tr.Message = res.Reason
			}
			results[i] = tr
			return nil
		})
	}
	_ = g.Wait()

	out := BulkResult{Results: results, Summary: BulkSummary{Total: len(results)}}
	for _, r := range results {
		if r.Success {
			out.Summary.Successful++
		} else {
			out.Summary.Failed++
		}
	}
	return out, nil
}

type Stats struct {
	PushTokens storage.TokenStats   `json:"push_tokens"`
	Requests   storage.RequestStats `json:"requests"`
	Timestamp  time.Time            `json:"timestamp"`
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	tokens, err := s.store.PushTokenStats(ctx)
	if err != nil {
		return Stats{}, err
	}
	reqs, err := s.store.RequestStats(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{PushTokens: tokens, Requests: reqs, Timestamp: time.Now().UTC()}, nil
}
