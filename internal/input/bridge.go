// Package input bridges value requests from the pipeline worker to the
// foreground actor.
package input

import (
	"context"
	"fmt"
	"sync"

	"github.com/slok/stackup/internal/log"
	"github.com/slok/stackup/internal/model"
	"github.com/slok/stackup/internal/report"
)

// Pending is an input request waiting for the foreground answer.
type Pending struct {
	Request model.InputRequest

	once sync.Once
	resp chan model.InputResponse
}

// Respond answers the request. Only the first answer is used.
func (p *Pending) Respond(resp model.InputResponse) {
	p.once.Do(func() {
		p.resp <- resp
	})
}

// BridgeConfig is the configuration for the input bridge.
type BridgeConfig struct {
	Reporter report.Reporter
	Logger   log.Logger
}

func (c *BridgeConfig) defaults() error {
	if c.Reporter == nil {
		c.Reporter = report.Noop
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "input.Bridge"})
	return nil
}

// Bridge is a single slot rendezvous between the worker that needs a value and
// the foreground that asks the user for it. There is at most one outstanding
// request at a time.
type Bridge struct {
	requests chan *Pending
	reporter report.Reporter
	logger   log.Logger

	mu       sync.Mutex
	inFlight bool
}

// NewBridge returns a new input bridge.
func NewBridge(cfg BridgeConfig) (*Bridge, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Bridge{
		requests: make(chan *Pending),
		reporter: cfg.Reporter,
		logger:   cfg.Logger,
	}, nil
}

// Requests returns the channel the foreground reads pending requests from.
func (b *Bridge) Requests() <-chan *Pending {
	return b.requests
}

// Request blocks until the foreground answers or the context is done.
func (b *Bridge) Request(ctx context.Context, req model.InputRequest) (string, error) {
	b.mu.Lock()
	if b.inFlight {
		b.mu.Unlock()
		return "", model.ErrRequestInFlight
	}
	b.inFlight = true
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.inFlight = false
		b.mu.Unlock()
	}()

	p := &Pending{
		Request: req,
		resp:    make(chan model.InputResponse, 1),
	}

	report.Infof(b.reporter, "Waiting for input: %s", describe(req))

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("waiting for input: %w", model.ErrCanceled)
	case b.requests <- p:
	}

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("waiting for input: %w", model.ErrCanceled)
	case resp := <-p.resp:
		if !resp.Accepted {
			b.logger.Debugf("Input declined: %s", req.Title)
			return "", fmt.Errorf("%s: %w", describe(req), model.ErrInputDeclined)
		}
		return resp.Value, nil
	}
}

func describe(req model.InputRequest) string {
	switch {
	case req.Title != "" && req.Label != "":
		return req.Title + " (" + req.Label + ")"
	case req.Title != "":
		return req.Title
	default:
		return req.Label
	}
}
