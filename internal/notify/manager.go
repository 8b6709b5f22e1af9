// Package notify delivers report messages to the configured channels.
// Telegram is the primary channel; Slack and email are optional mirrors.
package notify

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/Lavr-18/OKK-Tropic/internal/logging"
	"github.com/Lavr-18/OKK-Tropic/internal/metrics"
)

// DefaultCooldown is the minimum gap between sends to the same channel. The
// report sends two messages back to back, so it stays small.
var DefaultCooldown = 100 * time.Millisecond

var (
	maxRetries  = 3
	baseBackoff = 100 * time.Millisecond
	// backoffJitter adds up to this random duration to each backoff.
	backoffJitter = 0 * time.Millisecond
)

// sleepHook is used in tests to avoid sleeping for real.
var sleepHook = time.Sleep

// Service is a single delivery channel.
type Service interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// MultiNotifier fans a message out to every configured channel with
// per-channel retries and a cooldown.
type MultiNotifier struct {
	services []Service
	lastSent map[string]time.Time
	cooldown time.Duration
	mu       sync.Mutex
	wg       sync.WaitGroup
}

func NewMultiNotifier() *MultiNotifier {
	return &MultiNotifier{
		services: make([]Service, 0),
		lastSent: make(map[string]time.Time),
		cooldown: DefaultCooldown,
	}
}

func (m *MultiNotifier) Add(s Service) {
	if s != nil {
		m.services = append(m.services, s)
	}
}

func (m *MultiNotifier) Len() int {
	return len(m.services)
}

// SetCooldown allows tests or callers to adjust the cooldown.
func (m *MultiNotifier) SetCooldown(d time.Duration) {
	m.cooldown = d
}

// Wait blocks until pending sends complete or the context is cancelled.
func (m *MultiNotifier) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Send delivers the message to all channels asynchronously.
func (m *MultiNotifier) Send(ctx context.Context, title, message string) {
	now := time.Now()
	for _, s := range m.services {
		name := s.Name()
		m.wg.Add(1)
		go func(svc Service, svcName string) {
			defer m.wg.Done()
			if m.coolingDown(svcName, now) {
				logging.Get().Warn().Str("service", svcName).Msg("skipping send due to cooldown")
				return
			}
			if err := m.sendWithRetries(ctx, svc, title, message, svcName); err != nil {
				metrics.IncSendFailed()
				logging.Get().Error().Err(err).Str("service", svcName).Msg("all send retries failed")
			}
		}(s, name)
	}
}

// SendSync delivers to all channels and waits for them, returning the first
// channel error. The daemon uses it so a report run knows whether delivery
// actually happened before recording state.
func (m *MultiNotifier) SendSync(ctx context.Context, title, message string) error {
	var (
		mu       sync.Mutex
		firstErr error
		wg       sync.WaitGroup
	)
	now := time.Now()
	for _, s := range m.services {
		wg.Add(1)
		go func(svc Service, svcName string) {
			defer wg.Done()
			if m.coolingDown(svcName, now) {
				logging.Get().Warn().Str("service", svcName).Msg("skipping send due to cooldown")
				return
			}
			if err := m.sendWithRetries(ctx, svc, title, message, svcName); err != nil {
				metrics.IncSendFailed()
				logging.Get().Error().Err(err).Str("service", svcName).Msg("all send retries failed")
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("%s: %w", svcName, err)
				}
				mu.Unlock()
			}
		}(s, s.Name())
	}
	wg.Wait()
	return firstErr
}

func (m *MultiNotifier) coolingDown(name string, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if last, ok := m.lastSent[name]; ok {
		return now.Sub(last) < m.cooldown
	}
	return false
}

func (m *MultiNotifier) sendWithRetries(ctx context.Context, s Service, title, message, name string) error {
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err := s.Send(ctx, title, message); err != nil {
			lastErr = err
			logging.Get().Warn().Err(err).Str("service", name).Int("attempt", attempt).Msg("send attempt failed")
			if attempt < maxRetries {
				// context-aware sleep so Stop does not hang on backoff
				d := backoffDuration(attempt)
				slept := make(chan struct{})
				go func() {
					sleepHook(d)
					close(slept)
				}()
				select {
				case <-slept:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			continue
		}
		m.mu.Lock()
		m.lastSent[name] = time.Now()
		m.mu.Unlock()
		logging.Get().Debug().Str("service", name).Msg("message sent")
		return nil
	}
	return lastErr
}

func backoffDuration(attempt int) time.Duration {
	d := baseBackoff * time.Duration(1<<uint(attempt-1))
	if backoffJitter > 0 {
		max := big.NewInt(int64(backoffJitter))
		if n, err := crand.Int(crand.Reader, max); err == nil {
			d += time.Duration(n.Int64())
		}
	}
	return d
}

// postJSON is a shared helper used by providers.
func postJSON(ctx context.Context, url string, data interface{}) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("api returned status %d", resp.StatusCode)
	}
	return nil
}
