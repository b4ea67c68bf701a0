// Package main runs the auction scheduler: a small cron process that drives
// the API server's tick endpoint so rounds advance without manual calls.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/chopshop-gg/platform/pkg/logger"
)

// jobConfig is the scheduler's YAML configuration file.
type jobConfig struct {
	// Schedule is a cron expression; defaults to every minute.
	Schedule string `yaml:"schedule"`
	// TickURL is the server's tick endpoint.
	TickURL string `yaml:"tick_url"`
	// AuthToken is sent as a bearer token when set.
	AuthToken string `yaml:"auth_token"`
	// Timeout bounds each tick request.
	Timeout time.Duration `yaml:"timeout"`
}

func loadJobConfig(path string) (jobConfig, error) {
	cfg := jobConfig{
		Schedule: "* * * * *",
		TickURL:  "http://localhost:8080/auction/tick",
		Timeout:  30 * time.Second,
	}
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return jobConfig{}, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return jobConfig{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if strings.TrimSpace(cfg.TickURL) == "" {
		return jobConfig{}, fmt.Errorf("%s: tick_url is required", path)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return cfg, nil
}

func main() {
	configPath := flag.String("config", "", "path to scheduler YAML config")
	flag.Parse()

	log := logger.NewDefault("scheduler")

	cfg, err := loadJobConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("load config")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := &http.Client{Timeout: cfg.Timeout}
	runner := cron.New()
	if _, err := runner.AddFunc(cfg.Schedule, func() { tick(ctx, client, cfg, log) }); err != nil {
		log.WithError(err).Errorf("bad schedule %q", cfg.Schedule)
		os.Exit(1)
	}

	log.WithFields(map[string]interface{}{
		"schedule": cfg.Schedule,
		"tick_url": cfg.TickURL,
	}).Info("scheduler started")
	runner.Start()

	<-ctx.Done()
	log.Info("shutting down")
	<-runner.Stop().Done()
}

// tickReport mirrors the tick endpoint's response body.
type tickReport struct {
	Status       string  `json:"status"`
	Transitioned []int64 `json:"transitioned"`
	Finalized    []int64 `json:"finalized"`
	Started      *int64  `json:"started"`
}

func tick(ctx context.Context, client *http.Client, cfg jobConfig, log *logger.Logger) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.TickURL, nil)
	if err != nil {
		log.WithError(err).Error("build tick request")
		return
	}
	if cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.AuthToken)
	}

	resp, err := client.Do(req)
	if err != nil {
		log.WithError(err).Error("tick request failed")
		return
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		// Another scheduler or an operator got there first.
		log.Debug("tick already in progress")
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		log.Errorf("tick returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	default:
		var report tickReport
		if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
			log.WithError(err).Error("decode tick response")
			return
		}
		if len(report.Transitioned) > 0 || len(report.Finalized) > 0 || report.Started != nil {
			fields := map[string]interface{}{
				"transitioned": report.Transitioned,
				"finalized":    report.Finalized,
			}
			if report.Started != nil {
				fields["started"] = *report.Started
			}
			log.WithFields(fields).Info("tick advanced rounds")
		} else {
			log.Debug("no transition due")
		}
	}
}
