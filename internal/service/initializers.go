// File: internal/service/initializers.go
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/vidpilot/api/schemas"
	"github.com/xkilldash9x/vidpilot/internal/config"
	"github.com/xkilldash9x/vidpilot/internal/journal"
	"github.com/xkilldash9x/vidpilot/internal/llmclient"
	"github.com/xkilldash9x/vidpilot/internal/store"
)

// InitializeLLMClient validates the model routing and creates the tiered client.
func InitializeLLMClient(ctx context.Context, cfg config.AgentConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	if err := cfg.LLM.Validate(); err != nil {
		return nil, fmt.Errorf("agent.llm configuration invalid: %w", err)
	}
	llmClient, err := llmclient.NewClient(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize LLM client. Features requiring AI oracles will fail.", zap.Error(err))
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	return llmClient, nil
}

// InitializeJournal builds the action log with a JSONL file sink and a
// PostgreSQL sink when they are configured. The returned pool is nil without
// a database; the caller owns it.
func InitializeJournal(ctx context.Context, cfg config.JournalConfig, logger *zap.Logger) (*journal.Log, *pgxpool.Pool, error) {
	var sinks []journal.Sink
	closeAll := func() {
		for _, s := range sinks {
			_ = s.Close()
		}
	}

	if cfg.File != "" {
		fileSink, err := journal.NewFileSink(cfg.File, cfg.MaxSize)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, fileSink)
		logger.Debug("Journal file sink initialized.", zap.String("path", cfg.File))
	}

	var pool *pgxpool.Pool
	if cfg.Database.URL != "" {
		var err error
		pool, err = newPool(ctx, cfg.Database.URL)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		dbStore, err := store.New(ctx, pool, logger)
		if err != nil {
			pool.Close()
			closeAll()
			return nil, nil, fmt.Errorf("failed to initialize database store: %w", err)
		}
		if err := dbStore.Migrate(ctx); err != nil {
			pool.Close()
			closeAll()
			return nil, nil, err
		}
		sinks = append(sinks, dbStore)
		logger.Debug("Journal database sink initialized.")
	}

	return journal.NewLog(logger, sinks...), pool, nil
}

// newPool opens a small connection pool; the journal writes one row at a time.
func newPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("unable to parse PGX pool config: %w", err)
	}
	poolConfig.MaxConns = 4
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create PGX connection pool: %w", err)
	}
	return pool, nil
}
