// Package daemon runs the daily report schedule: it waits for the configured
// send time (MSK), builds the previous day's report and delivers it.
package daemon

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Lavr-18/OKK-Tropic/internal/config"
	"github.com/Lavr-18/OKK-Tropic/internal/logging"
	"github.com/Lavr-18/OKK-Tropic/internal/metrics"
	"github.com/Lavr-18/OKK-Tropic/internal/notify"
	"github.com/Lavr-18/OKK-Tropic/internal/report"
	"github.com/Lavr-18/OKK-Tropic/internal/state"
	"github.com/Lavr-18/OKK-Tropic/internal/timeutil"
)

// tickInterval is how often the scheduler checks whether the send time has
// been reached. One minute matches the HH:MM granularity of SendTime.
const tickInterval = time.Minute

type Daemon struct {
	cfg      *config.Config
	builder  *report.Builder
	quit     chan struct{}
	wg       sync.WaitGroup   // tracks active report runs
	Now      func() time.Time // injectable clock for testing
	notifier *notify.MultiNotifier
	cancel   func() // cancel function for the active context (set at Start)

	mu      sync.Mutex
	lastRun string // report date of the last completed run
}

// New creates a daemon around a report builder.
func New(cfg *config.Config, builder *report.Builder) *Daemon {
	d := &Daemon{cfg: cfg, builder: builder, quit: make(chan struct{}), Now: time.Now}

	d.initNotifiers()

	for _, w := range cfg.Validate() {
		logging.Get().Warn().Str("warning", w).Msg("config validation")
	}

	return d
}

// initNotifiers initializes all configured delivery channels.
func (d *Daemon) initNotifiers() {
	d.notifier = notify.NewMultiNotifier()
	// the report is delivered as two consecutive messages; a cooldown would
	// swallow the second one
	d.notifier.SetCooldown(0)
	cfg := d.cfg
	entries := []struct {
		enabled bool
		add     func()
	}{
		{cfg.TelegramToken != "" && cfg.TelegramChatID != "", func() {
			d.notifier.Add(&notify.Telegram{BotToken: cfg.TelegramToken, ChatID: cfg.TelegramChatID})
		}},
		{cfg.SlackWebhook != "", func() { d.notifier.Add(&notify.Slack{WebhookURL: cfg.SlackWebhook}) }},
		{cfg.EmailHost != "" && len(cfg.EmailTo) > 0, func() {
			d.notifier.Add(&notify.Email{Host: cfg.EmailHost, Port: cfg.EmailPort, User: cfg.EmailUser, Pass: cfg.EmailPass, To: cfg.EmailTo})
		}},
	}
	for _, e := range entries {
		if e.enabled {
			e.add()
		}
	}
}

// Notifier exposes the delivery channels, for tests and the CLI.
func (d *Daemon) Notifier() *notify.MultiNotifier { return d.notifier }

// Start runs the scheduler loop until Stop is called. Blocks.
func (d *Daemon) Start() {
	logging.Get().Info().Str("send_time", d.cfg.SendTime).Msg("starting okk report daemon")
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if !d.due(d.Now()) {
				continue
			}
			d.wg.Add(1)
			d.runScheduled(ctx)
			d.wg.Done()
		case <-d.quit:
			logging.Get().Info().Msg("stopping daemon")
			return
		}
	}
}

// due reports whether now has reached the configured send time and the
// report for yesterday has not been produced in this process yet.
func (d *Daemon) due(now time.Time) bool {
	var h, m int
	if n, err := fmt.Sscanf(d.cfg.SendTime, "%d:%d", &h, &m); err != nil || n != 2 {
		return false
	}
	local := now.In(timeutil.MSK)
	if local.Hour() < h || (local.Hour() == h && local.Minute() < m) {
		return false
	}
	reportDate := timeutil.FormatDay(timeutil.Yesterday(now))
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastRun != reportDate
}

// runScheduled builds and delivers the report for yesterday, guarding
// against duplicate delivery across restarts via the state file.
func (d *Daemon) runScheduled(ctx context.Context) {
	day := timeutil.Yesterday(d.Now())
	reportDate := timeutil.FormatDay(day)

	if state.WasDelivered(d.cfg.TelegramChatID, reportDate) {
		logging.Get().Info().Str("report_date", reportDate).Msg("report already delivered, skipping")
		d.markRun(reportDate)
		return
	}
	if err := d.RunFor(ctx, day); err != nil {
		metrics.IncReportFailed()
		logging.Get().Error().Err(err).Str("report_date", reportDate).Msg("report run failed")
		return
	}
	d.markRun(reportDate)
}

func (d *Daemon) markRun(reportDate string) {
	d.mu.Lock()
	d.lastRun = reportDate
	d.mu.Unlock()
}

// RunFor builds and delivers the report for the given MSK day. In dry-run
// mode the report is built and logged but not sent.
func (d *Daemon) RunFor(ctx context.Context, day time.Time) error {
	rep := d.builder.Build(ctx, day)
	metrics.IncReport()

	log := logging.Get().With().Str("report_id", rep.ID).Str("report_date", timeutil.FormatDay(day)).Logger()

	if d.cfg.DryRun {
		log.Info().Msg("dry run: report built but not sent")
		log.Info().Str("message", rep.Main).Msg("main report")
		log.Info().Str("message", rep.Names).Msg("name audit report")
		return nil
	}

	if err := d.notifier.SendSync(ctx, "", rep.Main); err != nil {
		return fmt.Errorf("send main report: %w", err)
	}
	if err := d.notifier.SendSync(ctx, "", rep.Names); err != nil {
		return fmt.Errorf("send name audit: %w", err)
	}

	metrics.SetLastReport(d.Now())
	record := state.DeliveryRecord{
		ChatID:     d.cfg.TelegramChatID,
		ReportDate: timeutil.FormatDay(day),
		ReportID:   rep.ID,
		SentAt:     d.Now().UTC(),
	}
	if err := state.MarkDelivered(record); err != nil {
		log.Warn().Err(err).Msg("failed to record delivery state")
	}
	log.Info().Msg("report delivered")
	return nil
}

// RunOnce builds and delivers yesterday's report immediately (CLI -run-once).
func (d *Daemon) RunOnce(ctx context.Context) error {
	return d.RunFor(ctx, timeutil.Yesterday(d.Now()))
}

// Stop shuts the daemon down, waiting for an active run within ctx.
func (d *Daemon) Stop(ctx context.Context) {
	if d.cancel != nil {
		d.cancel()
	}
	close(d.quit)

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		logging.Get().Info().Msg("active report runs completed")
	case <-ctx.Done():
		logging.Get().Warn().Msg("shutdown timeout exceeded, a report run may be incomplete")
	}

	if d.notifier != nil {
		notifyCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.notifier.Wait(notifyCtx); err != nil {
			logging.Get().Warn().Err(err).Msg("timed out waiting for notifiers to finish")
		}
	}
}
