package watcher

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/learnchain/txwatcher/config"
	"github.com/learnchain/txwatcher/pkg/api"
	"github.com/learnchain/txwatcher/pkg/clients/backend"
	"github.com/learnchain/txwatcher/pkg/clients/indexer"
	"github.com/learnchain/txwatcher/pkg/db"
	"github.com/learnchain/txwatcher/pkg/events"
)

// Service assembles the watcher with its collaborators: indexer and backend
// clients, the snapshot store, the completion audit log, the sweep scheduler
// and the status API.
type Service struct {
	Watcher       *Watcher
	Scheduler     *Scheduler
	ApiServer     *api.Server
	CompletionLog *db.CompletionLog

	cancel context.CancelFunc
}

func NewService(cfg *config.Config, store db.Store, eventBus *events.EventBus) (*Service, error) {
	indexerClient, err := indexer.NewClient(&cfg.Indexer)
	if err != nil {
		return nil, fmt.Errorf("failed to create indexer client: %w", err)
	}
	backendClient, err := backend.NewClient(&cfg.Backend)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend client: %w", err)
	}
	dispatcher, err := NewDispatcher(backendClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}

	var completionLog *db.CompletionLog
	var recorder CompletionRecorder
	if cfg.Database.MongoURI != "" {
		completionLog, err = db.NewCompletionLog(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to create completion log: %w", err)
		}
		recorder = completionLog
	}

	watcher := NewWatcher(&cfg.Watcher, indexerClient, backendClient, dispatcher, store, eventBus, recorder)
	scheduler := NewScheduler(watcher, SystemClock())
	apiServer := api.NewServer(&cfg.Api, watcher)

	return &Service{
		Watcher:       watcher,
		Scheduler:     scheduler,
		ApiServer:     apiServer,
		CompletionLog: completionLog,
	}, nil
}

func (s *Service) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)
	if err := s.Watcher.LoadWatchSet(ctx); err != nil {
		return fmt.Errorf("failed to load watch set: %w", err)
	}
	s.Scheduler.Start(ctx)
	go func() {
		if err := s.ApiServer.Start(); err != nil {
			log.Error().Err(err).Msg("[Service] [Start] api server stopped with error")
		}
	}()
	return nil
}

func (s *Service) Stop() {
	log.Info().Msg("Watcher service stopping")
	if s.cancel != nil {
		s.cancel()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.ApiServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("[Service] [Stop] api server shutdown failed")
	}
	<-s.Scheduler.Done()
	if s.CompletionLog != nil {
		if err := s.CompletionLog.Close(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("[Service] [Stop] completion log close failed")
		}
	}
}
