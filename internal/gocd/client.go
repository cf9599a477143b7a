package gocd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mail2alert/internal/buildstate"
	"mail2alert/internal/constants"
	"mail2alert/internal/logger"
	"mail2alert/internal/topology"
	"mail2alert/pkg/circuitbreaker"
	"mail2alert/pkg/errors"
	"mail2alert/pkg/retry"
)

const (
	pipelineGroupsPath = "/api/config/pipeline_groups"
	cctrayPath         = "/cctray.xml"
)

type ClientConfig struct {
	URL      string
	User     string
	Password string
	Timeout  time.Duration
	// Breaker overrides the default circuit breaker settings when its Name is set.
	Breaker circuitbreaker.Config
}

// Client reads the pipeline group configuration and the cctray status feed from
// a GoCD server. Requests go through a circuit breaker and are retried on
// network errors and 5xx responses.
type Client struct {
	baseURL  string
	user     string
	password string
	http     *http.Client
	breaker  *circuitbreaker.Wrapper
	policy   retry.Policy
	logger   logger.Logger
}

func NewClient(cfg ClientConfig, log logger.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.ErrConfiguration.WithMessage("no GoCD url configured")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = constants.DefaultHTTPTimeout
	}
	if cfg.User == "" {
		log.Warnw("Missing GoCD user in configuration, requests are unauthenticated",
			"url", cfg.URL,
		)
	}

	breakerCfg := cfg.Breaker
	if breakerCfg.Name == "" {
		breakerCfg = circuitbreaker.DefaultConfig("gocd:" + cfg.URL)
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		user:     cfg.User,
		password: cfg.Password,
		http:     &http.Client{Timeout: cfg.Timeout},
		breaker:  circuitbreaker.NewWrapper(breakerCfg),
		policy:   retry.FetchPolicy(),
		logger:   log,
	}, nil
}

func (c *Client) FetchGroups(ctx context.Context) ([]topology.Group, error) {
	var groups []topology.Group
	err := c.get(ctx, pipelineGroupsPath, func(body io.Reader) error {
		return json.NewDecoder(body).Decode(&groups)
	})
	if err != nil {
		return nil, err
	}
	return groups, nil
}

func (c *Client) FetchCCTray(ctx context.Context) ([]buildstate.StageStatus, error) {
	var statuses []buildstate.StageStatus
	err := c.get(ctx, cctrayPath, func(body io.Reader) error {
		var err error
		statuses, err = buildstate.ParseCCTray(body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return statuses, nil
}

func (c *Client) get(ctx context.Context, path string, decode func(io.Reader) error) error {
	url := c.baseURL + path

	attempt := func() error {
		return c.breaker.Call(ctx, func(ctx context.Context) error {
			return c.do(ctx, url, decode)
		})
	}

	err := retry.RetryWithCallback(ctx, c.policy, attempt, retry.Logged(ctx, c.logger, "gocd", path))
	if err != nil {
		if errors.IsTransport(err) {
			return err
		}
		return errors.ErrTransport.WithMessage("fetching %s failed", url).WithCause(err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, url string, decode func(io.Reader) error) error {
	c.logger.DebugwCtx(ctx, "Fetching url", "url", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return retry.NewFatalError(fmt.Errorf("failed to create request: %w", err))
	}
	if c.user != "" {
		req.SetBasicAuth(c.user, c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < constants.HTTPStatusOKMin || resp.StatusCode >= constants.HTTPStatusOKMax {
		err := fmt.Errorf("%s returned status: %d", url, resp.StatusCode)
		if resp.StatusCode < http.StatusInternalServerError {
			return retry.NewFatalError(err)
		}
		return err
	}

	if err := decode(resp.Body); err != nil {
		return retry.NewFatalError(fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}
