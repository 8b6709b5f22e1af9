// Package report builds the daily quality-control report for the Tropic
// online store. The report covers four sections (manager tasks, telephony,
// order processing, evening chats) plus a separate customer-name audit, and
// is rendered as two Telegram-ready text messages.
package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Lavr-18/OKK-Tropic/internal/botapi"
	"github.com/Lavr-18/OKK-Tropic/internal/logging"
	"github.com/Lavr-18/OKK-Tropic/internal/metrics"
	"github.com/Lavr-18/OKK-Tropic/internal/retailcrm"
	"github.com/Lavr-18/OKK-Tropic/internal/timeutil"
	"github.com/Lavr-18/OKK-Tropic/internal/uis"
)

// CRM is the slice of the RetailCRM client the report needs.
type CRM interface {
	Managers(ctx context.Context) (map[int]string, error)
	TasksDueBetween(ctx context.Context, from, to time.Time) ([]retailcrm.Task, error)
	OrdersCreatedBetween(ctx context.Context, from, to time.Time, orderMethods []string) ([]retailcrm.Order, error)
	CustomerIDByPhone(ctx context.Context, phoneNumber string, since time.Time) (int, error)
	HasCustomerMessagesSince(ctx context.Context, customerID int, since time.Time) (bool, error)
	OrderEditURL(orderID int) string
	CustomerEditURL(customerID int) string
}

// Calls is the slice of the UIS client the report needs.
type Calls interface {
	CallsReport(ctx context.Context, from, till time.Time) ([]uis.Call, error)
}

// Chats is the slice of the Bot API client the report needs.
type Chats interface {
	ActiveDialogs(ctx context.Context, max int) ([]botapi.Dialog, error)
	DialogMessages(ctx context.Context, chatID int64, limit int) ([]botapi.Message, error)
}

// NameChecker validates a single customer name field.
type NameChecker interface {
	Check(ctx context.Context, text, field string, lastNameEmpty bool) (bool, string)
}

// Builder assembles the daily report from the backing APIs.
type Builder struct {
	CRM   CRM
	Calls Calls
	Chats Chats
	Names NameChecker

	// MaxDialogs caps how many active dialogs the chat section inspects.
	MaxDialogs int
	// MaxConcurrentChecks bounds the per-dialog message fetch fan-out.
	MaxConcurrentChecks int

	log zerolog.Logger
}

// NewBuilder wires a Builder with the given clients.
func NewBuilder(crm CRM, calls Calls, chats Chats, names NameChecker, maxDialogs, maxConcurrent int) *Builder {
	if maxDialogs <= 0 {
		maxDialogs = 50
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &Builder{
		CRM:                 crm,
		Calls:               calls,
		Chats:               chats,
		Names:               names,
		MaxDialogs:          maxDialogs,
		MaxConcurrentChecks: maxConcurrent,
		log:                 *logging.Get(),
	}
}

// Report is one fully built daily report.
type Report struct {
	ID   string
	Date time.Time
	// Main is the first Telegram message (sections 1 through 4).
	Main string
	// Names is the second Telegram message (customer name audit).
	Names string
}

// Build assembles the report for the given MSK day. Individual section
// failures degrade to error lines inside the report; Build itself only logs.
func (b *Builder) Build(ctx context.Context, day time.Time) *Report {
	start := time.Now()
	id := uuid.New().String()
	log := b.log.With().Str("report_id", id).Str("report_date", timeutil.FormatDay(day)).Logger()
	log.Info().Msg("building daily report")

	var lines []string
	lines = append(lines, fmt.Sprintf("Отчет ОКК %s", day.In(timeutil.MSK).Format("02.01.2006")))
	lines = append(lines, "---")
	lines = append(lines, b.tasksSection(ctx, day)...)
	lines = append(lines, "")
	lines = append(lines, b.callsSection(ctx, day)...)
	lines = append(lines, "")
	lines = append(lines, b.ordersSection(ctx, day)...)
	lines = append(lines, "")
	lines = append(lines, b.chatsSection(ctx, day)...)

	nameLines := []string{"Проверка оформления ФИО"}
	nameLines = append(nameLines, b.namesSection(ctx, day)...)

	metrics.ObserveBuildDuration(time.Since(start).Seconds())
	log.Info().Dur("elapsed", time.Since(start)).Msg("report built")

	return &Report{
		ID:    id,
		Date:  day,
		Main:  strings.Join(lines, "\n"),
		Names: strings.Join(nameLines, "\n"),
	}
}
