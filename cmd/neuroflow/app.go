package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"neuroflow/internal/breakdown"
	"neuroflow/internal/cache"
	"neuroflow/internal/config"
	"neuroflow/internal/llm"
	"neuroflow/internal/logging"
	"neuroflow/internal/quota"
	"neuroflow/internal/store"
	synci "neuroflow/internal/sync"
	"neuroflow/internal/types"
)

// app bundles the wired collaborators every command needs.
type app struct {
	cfg          *config.Config
	store        *store.Store
	cache        *cache.Cache
	quota        *quota.Manager
	orchestrator *breakdown.Orchestrator
	reconciler   *synci.Reconciler
}

// newApp boots the core: config, logging, persistence, cache, quota, and
// the AI path when a key is available. The user's quota record is
// provisioned on first use.
func newApp(ctx context.Context) (*app, error) {
	ws := workspace
	if ws == "" {
		var err error
		if ws, err = os.Getwd(); err != nil {
			return nil, fmt.Errorf("failed to resolve workspace: %w", err)
		}
	}

	if err := logging.Initialize(ws); err != nil {
		logger.Warn("file logging unavailable", zap.Error(err))
	}

	cfg, err := config.Load(filepath.Join(ws, ".flow", "config.yaml"))
	if err != nil {
		return nil, err
	}
	if apiKey != "" {
		cfg.AI.APIKey = apiKey
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := store.New(resolvePath(ws, cfg.Storage.DatabasePath))
	if err != nil {
		return nil, err
	}

	c, err := cache.New(resolvePath(ws, cfg.Storage.CacheDir))
	if err != nil {
		st.Close()
		return nil, err
	}

	qm := quota.NewManager(st)
	if err := st.CreateQuota(ctx, &types.QuotaRecord{
		UserID:  userID,
		Tier:    types.TierFree,
		Limit:   cfg.LimitForTier("free"),
		ResetAt: time.Now().AddDate(0, 1, 0),
	}); err != nil {
		st.Close()
		return nil, err
	}

	var client llm.Client
	if cfg.AI.APIKey != "" {
		gc, err := llm.NewGeminiClient(ctx, cfg.AI.APIKey, cfg.AI.Model)
		if err != nil {
			logger.Warn("AI client unavailable, breakdowns will use the local path", zap.Error(err))
		} else {
			client = gc
		}
	}

	o := breakdown.NewOrchestrator(qm, client, cfg.AI.Model, cfg.GetAITimeout(), cfg.AI.MaxTokens)

	return &app{
		cfg:          cfg,
		store:        st,
		cache:        c,
		quota:        qm,
		orchestrator: o,
		reconciler:   synci.NewReconciler(st, c, o),
	}, nil
}

func (a *app) close() {
	if err := a.cache.Flush(); err != nil {
		logger.Warn("cache flush failed", zap.Error(err))
	}
	if err := a.store.Close(); err != nil {
		logger.Warn("store close failed", zap.Error(err))
	}
	logging.CloseAll()
}

func resolvePath(ws, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(ws, p)
}
