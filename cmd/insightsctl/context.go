package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"interview-insights-go/internal/app"
	"interview-insights-go/internal/config"
	"interview-insights-go/internal/logger"
)

type commandContext struct {
	configFlag *string

	once   sync.Once
	app    *app.App
	appErr error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

// ensureApp loads .env and configuration, then opens the store once per
// invocation.
func (c *commandContext) ensureApp(ctx context.Context) (*app.App, error) {
	c.once.Do(func() {
		_ = godotenv.Load()
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.Load(path)
		if err != nil {
			c.appErr = err
			return
		}
		c.app, c.appErr = app.Open(ctx, cfg, logger.New())
	})
	return c.app, c.appErr
}

func (c *commandContext) close() {
	if c.app != nil {
		_ = c.app.Close()
	}
}

func parseUUIDFlag(name, value string, required bool) (uuid.UUID, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		if required {
			return uuid.Nil, fmt.Errorf("--%s is required", name)
		}
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("--%s: %w", name, err)
	}
	return id, nil
}

func optionalUUID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
