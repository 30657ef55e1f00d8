package app

import (
	"fmt"
	"time"

	"github.com/k9trials/ringsync/internal/orgs"
	"github.com/k9trials/ringsync/internal/remote"
	"github.com/k9trials/ringsync/internal/store"
)

// Service wires the pieces every entrypoint needs: config, the local
// store, the remote client and the optional session lock.
type Service struct {
	Config  *Config
	Store   store.TrialStore
	Remote  *remote.Client
	Lock    *SessionLock
	Profile orgs.Profile
}

func NewService(configPath string) (*Service, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	profile, err := config.OrgProfile()
	if err != nil {
		return nil, err
	}

	trialStore, err := NewStore(config.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to init store: %w", err)
	}

	lock, err := NewSessionLock(config)
	if err != nil {
		trialStore.Close()
		return nil, fmt.Errorf("failed to init session lock: %w", err)
	}

	client := remote.NewClient(remote.Config{
		BaseURL:     config.Remote.BaseURL,
		APIKey:      config.Remote.APIKey,
		BearerToken: config.Remote.BearerToken,
		Timeout:     time.Duration(config.Remote.TimeoutSeconds) * time.Second,
	})

	return &Service{
		Config:  config,
		Store:   trialStore,
		Remote:  client,
		Lock:    lock,
		Profile: profile,
	}, nil
}

func (s *Service) Close() error {
	var errs []error

	if err := s.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}
	if err := s.Lock.Close(); err != nil {
		errs = append(errs, fmt.Errorf("lock: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors while closing: %v", errs)
	}
	return nil
}
