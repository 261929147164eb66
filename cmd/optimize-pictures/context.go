package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/lilnasy/astro-optimize-pictures/internal/config"
	"github.com/lilnasy/astro-optimize-pictures/internal/ffmpeg"
	"github.com/lilnasy/astro-optimize-pictures/internal/logging"
)

type commandContext struct {
	configFlag   string
	cwdFlag      string
	logLevelFlag string

	// executor replaces ffmpeg process spawning when set.
	executor ffmpeg.Executor

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(strings.TrimSpace(c.configFlag))
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// ensureLogger builds the process logger and prunes expired failure
// transcripts.
func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		logger, err := logging.NewFromConfig(cfg, c.logLevelFlag)
		if err != nil {
			c.loggerErr = fmt.Errorf("init logging: %w", err)
			return
		}
		logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, logging.RetentionTarget{
			Dir:  cfg.RunLogDir(),
			Dirs: true,
		})
		c.logger = logger
	})
	return c.logger, c.loggerErr
}

func (c *commandContext) workDir() (string, error) {
	dir := strings.TrimSpace(c.cwdFlag)
	if dir == "" {
		return os.Getwd()
	}
	return config.ExpandPath(dir)
}
