package auth

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"
)

var testEpoch = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClock advances only when the flow waits on it.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: testEpoch}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

func (c *fakeClock) Elapsed() time.Duration {
	return c.Now().Sub(testEpoch)
}

// memoryCache is an in-memory TokenCache with failure injection.
type memoryCache struct {
	mu      sync.Mutex
	cred    *Credential
	loadErr error
	saveErr error
	saves   int
	clears  int
}

func (c *memoryCache) Load(context.Context) (*Credential, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loadErr != nil {
		return nil, c.loadErr
	}
	if c.cred == nil {
		return nil, ErrCacheMiss
	}
	return c.cred, nil
}

func (c *memoryCache) Save(_ context.Context, cred *Credential) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saves++
	if c.saveErr != nil {
		return c.saveErr
	}
	c.cred = cred
	return nil
}

func (c *memoryCache) Clear(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clears++
	c.cred = nil
	c.loadErr = nil
	return nil
}

func (c *memoryCache) Backend() string { return "memory" }

// stubFlow returns a fixed result and counts runs.
type stubFlow struct {
	cred  *Credential
	err   error
	runs  int
	hints []string
}

func (f *stubFlow) Name() string { return "stub" }

func (f *stubFlow) Run(_ context.Context, hint string) (*Credential, error) {
	f.runs++
	f.hints = append(f.hints, hint)
	return f.cred, f.err
}

// stubProber accepts only the listed access tokens.
type stubProber struct {
	valid  map[string]bool
	probed []string
}

func (p *stubProber) Probe(_ context.Context, cred *Credential) error {
	p.probed = append(p.probed, cred.AccessToken)
	if p.valid[cred.AccessToken] {
		return nil
	}
	return ErrTokenInvalid
}
