package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sitescout/internal/explore"
)

// Explorer runs one exploration. explore.Controller satisfies it.
type Explorer interface {
	Explore(ctx context.Context, req explore.Request, onEvent func(explore.Event)) explore.Payload
}

type ServiceConfig struct {
	MaxPages   int
	RunTimeout time.Duration
	OnEvent    func(explore.Event)
}

// Service ties stored tasks to exploration runs.
type Service struct {
	store    Store
	explorer Explorer
	cfg      ServiceConfig
	now      func() time.Time
}

func NewService(store Store, explorer Explorer, cfg ServiceConfig) *Service {
	return &Service{store: store, explorer: explorer, cfg: cfg, now: time.Now}
}

// Run explores a stored task and records the payload. A payload carrying a
// fatal error marks the task failed; anything else marks it completed.
func (s *Service) Run(ctx context.Context, id string) (explore.Payload, error) {
	current, err := s.store.Get(ctx, id)
	if err != nil {
		return explore.Payload{}, err
	}
	if err := s.store.MarkRunning(ctx, id); err != nil {
		return explore.Payload{}, err
	}

	runCtx := ctx
	if s.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.cfg.RunTimeout)
		defer cancel()
	}

	payload := s.explorer.Explore(runCtx, explore.Request{
		StartURL: current.URL,
		Goal:     current.Goal,
		MaxPages: s.cfg.MaxPages,
	}, s.cfg.OnEvent)

	status := StatusCompleted
	if payload.Failed() {
		status = StatusFailed
	}
	// The run already happened; record it even if the caller has gone away.
	recordCtx := context.WithoutCancel(ctx)
	encoded, err := json.Marshal(payload)
	if err != nil {
		failed, _ := json.Marshal(map[string]string{"error": fmt.Sprintf("encode payload: %v", err)})
		if finishErr := s.store.Finish(recordCtx, id, StatusFailed, failed, s.now()); finishErr != nil {
			return payload, errors.Join(fmt.Errorf("encode payload: %w", err), finishErr)
		}
		return payload, fmt.Errorf("encode payload: %w", err)
	}

	if err := s.store.Finish(recordCtx, id, status, encoded, s.now()); err != nil {
		return payload, err
	}
	return payload, nil
}
