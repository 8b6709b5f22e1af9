package daemon

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Lavr-18/OKK-Tropic/internal/botapi"
	"github.com/Lavr-18/OKK-Tropic/internal/config"
	"github.com/Lavr-18/OKK-Tropic/internal/report"
	"github.com/Lavr-18/OKK-Tropic/internal/retailcrm"
	"github.com/Lavr-18/OKK-Tropic/internal/state"
	"github.com/Lavr-18/OKK-Tropic/internal/timeutil"
	"github.com/Lavr-18/OKK-Tropic/internal/uis"
)

type stubCRM struct{}

func (stubCRM) Managers(ctx context.Context) (map[int]string, error) { return nil, nil }
func (stubCRM) TasksDueBetween(ctx context.Context, from, to time.Time) ([]retailcrm.Task, error) {
	return nil, nil
}
func (stubCRM) OrdersCreatedBetween(ctx context.Context, from, to time.Time, orderMethods []string) ([]retailcrm.Order, error) {
	return nil, nil
}
func (stubCRM) CustomerIDByPhone(ctx context.Context, phoneNumber string, since time.Time) (int, error) {
	return 0, nil
}
func (stubCRM) HasCustomerMessagesSince(ctx context.Context, customerID int, since time.Time) (bool, error) {
	return false, nil
}
func (stubCRM) OrderEditURL(orderID int) string    { return "" }
func (stubCRM) CustomerEditURL(orderID int) string { return "" }

type stubCalls struct{}

func (stubCalls) CallsReport(ctx context.Context, from, till time.Time) ([]uis.Call, error) {
	return nil, nil
}

type stubChats struct{}

func (stubChats) ActiveDialogs(ctx context.Context, max int) ([]botapi.Dialog, error) {
	return nil, nil
}
func (stubChats) DialogMessages(ctx context.Context, chatID int64, limit int) ([]botapi.Message, error) {
	return nil, nil
}

type stubNames struct{}

func (stubNames) Check(ctx context.Context, text, field string, lastNameEmpty bool) (bool, string) {
	return true, "OK"
}

type recordingService struct {
	mu       sync.Mutex
	messages []string
	fail     bool
}

func (r *recordingService) Send(ctx context.Context, title, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("send failed")
	}
	r.messages = append(r.messages, message)
	return nil
}

func (r *recordingService) Name() string { return "recorder" }

func newTestDaemon(t *testing.T, cfg *config.Config) (*Daemon, *recordingService) {
	t.Helper()
	t.Setenv("OKK_STATE_DIR", t.TempDir())
	builder := report.NewBuilder(stubCRM{}, stubCalls{}, stubChats{}, stubNames{}, cfg.MaxDialogs, cfg.MaxConcurrentChecks)
	d := New(cfg, builder)
	rec := &recordingService{}
	d.Notifier().Add(rec)
	return d, rec
}

func TestRunOnceSendsBothMessages(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.TelegramChatID = "-100"
	d, rec := newTestDaemon(t, cfg)
	d.Now = func() time.Time {
		return time.Date(2026, 8, 30, 7, 0, 0, 0, timeutil.MSK)
	}

	if err := d.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(rec.messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(rec.messages))
	}
	if !strings.HasPrefix(rec.messages[0], "Отчет ОКК 29.08.2026") {
		t.Errorf("first message: %q", rec.messages[0])
	}
	if !strings.HasPrefix(rec.messages[1], "Проверка оформления ФИО") {
		t.Errorf("second message: %q", rec.messages[1])
	}
}

func TestRunOnceRecordsDelivery(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.TelegramChatID = "-100"
	d, _ := newTestDaemon(t, cfg)
	d.Now = func() time.Time {
		return time.Date(2026, 8, 30, 7, 0, 0, 0, timeutil.MSK)
	}

	if err := d.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if !state.WasDelivered("-100", "2026-08-29") {
		t.Error("delivery not recorded in state")
	}
}

func TestRunOnceDryRunDoesNotSend(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.TelegramChatID = "-100"
	cfg.DryRun = true
	d, rec := newTestDaemon(t, cfg)

	if err := d.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(rec.messages) != 0 {
		t.Fatalf("dry run must not send, got %v", rec.messages)
	}
	if state.WasDelivered("-100", timeutil.FormatDay(timeutil.Yesterday(time.Now()))) {
		t.Error("dry run must not record delivery")
	}
}

func TestRunOnceSendFailure(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.TelegramChatID = "-100"
	d, rec := newTestDaemon(t, cfg)
	rec.fail = true

	err := d.RunOnce(context.Background())
	if err == nil {
		t.Fatal("expected send error")
	}
	if state.WasDelivered("-100", timeutil.FormatDay(timeutil.Yesterday(time.Now()))) {
		t.Error("failed delivery must not be recorded")
	}
}

func TestDue(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.SendTime = "07:00"
	cfg.TelegramChatID = "-100"
	d, _ := newTestDaemon(t, cfg)

	before := time.Date(2026, 8, 30, 6, 59, 0, 0, timeutil.MSK)
	if d.due(before) {
		t.Error("should not be due before send time")
	}
	at := time.Date(2026, 8, 30, 7, 0, 0, 0, timeutil.MSK)
	if !d.due(at) {
		t.Error("should be due at send time")
	}
	d.markRun("2026-08-29")
	if d.due(at) {
		t.Error("should not be due again for the same report date")
	}
	nextDay := time.Date(2026, 8, 31, 7, 0, 0, 0, timeutil.MSK)
	if !d.due(nextDay) {
		t.Error("should be due again the next day")
	}
}

func TestScheduledSkipsAlreadyDelivered(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.TelegramChatID = "-100"
	d, rec := newTestDaemon(t, cfg)
	d.Now = func() time.Time {
		return time.Date(2026, 8, 30, 7, 1, 0, 0, timeutil.MSK)
	}

	if err := state.MarkDelivered(state.DeliveryRecord{ChatID: "-100", ReportDate: "2026-08-29", ReportID: "prev", SentAt: time.Now()}); err != nil {
		t.Fatalf("seed state: %v", err)
	}

	d.runScheduled(context.Background())
	if len(rec.messages) != 0 {
		t.Fatalf("expected no sends for already delivered day, got %v", rec.messages)
	}
	if d.due(d.Now()) {
		t.Error("run should be marked done after the skip")
	}
}

func TestStopCompletes(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.TelegramChatID = "-100"
	d, _ := newTestDaemon(t, cfg)

	go d.Start()
	// give the loop a moment to install its context
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	d.Stop(ctx)
}
