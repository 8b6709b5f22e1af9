package report

import (
	"context"
	"fmt"
	"time"

	"github.com/Lavr-18/OKK-Tropic/internal/metrics"
	"github.com/Lavr-18/OKK-Tropic/internal/timeutil"
)

// missedCallMinDuration filters out instant hangups; anything shorter is
// noise, not a caller waiting on the line.
const missedCallMinDuration = 10 * time.Second

// lateCallbackThreshold is how long a callback may take before it counts as
// late, and also how far back the chat-response check looks before the
// missed call.
const lateCallbackThreshold = 5 * time.Minute

type missedCall struct {
	phone string
	at    time.Time
}

// callsSection builds section 2: missed inbound calls and how the managers
// responded to them, by callback or by chat.
func (b *Builder) callsSection(ctx context.Context, day time.Time) []string {
	from, till := timeutil.CallsWindow(day)
	calls, err := b.Calls.CallsReport(ctx, from, till)
	if err != nil {
		b.log.Error().Err(err).Msg("fetch uis calls")
		metrics.IncAPIFailure("uis")
		return []string{
			"2. Пропущенных - Ошибка получения данных UIS",
			"Абонентов - Ошибка получения данных UIS",
			"Количество перезвонов более 5 минут - Ошибка получения данных UIS",
			"Не перезвонили/не написали - Ошибка получения данных UIS",
		}
	}

	var (
		missedCount   int
		uniqueCallers = make(map[string]struct{})
		missed        []missedCall
		outgoing      = make(map[string][]time.Time)
	)
	for _, call := range calls {
		switch call.Direction {
		case "in":
			if call.ContactPhone != "" {
				uniqueCallers[call.ContactPhone] = struct{}{}
			}
			if call.IsLost && call.Duration > missedCallMinDuration.Seconds() {
				missedCount++
				if call.ContactPhone == "" || call.StartTime == "" {
					continue
				}
				at, err := timeutil.ParseCRMTime(call.StartTime)
				if err != nil {
					continue
				}
				missed = append(missed, missedCall{phone: call.ContactPhone, at: at})
			}
		case "out":
			if call.ContactPhone == "" || call.StartTime == "" {
				continue
			}
			at, err := timeutil.ParseCRMTime(call.StartTime)
			if err != nil {
				continue
			}
			outgoing[call.ContactPhone] = append(outgoing[call.ContactPhone], at)
		}
	}

	lateCallbacks := 0
	responded := make(map[string]struct{})
	for _, m := range missed {
		calledBack := false
		firstCallbackDelay := time.Duration(-1)
		for _, at := range outgoing[m.phone] {
			if !at.After(m.at) {
				continue
			}
			calledBack = true
			delay := at.Sub(m.at)
			if firstCallbackDelay < 0 || delay < firstCallbackDelay {
				firstCallbackDelay = delay
			}
		}

		anyResponse := calledBack || b.chatResponded(ctx, m)
		if anyResponse {
			responded[m.phone] = struct{}{}
			if calledBack && firstCallbackDelay > lateCallbackThreshold {
				lateCallbacks++
			}
		}
	}

	return []string{
		fmt.Sprintf("2. Пропущенных - %d", missedCount),
		fmt.Sprintf("Абонентов - %d", len(uniqueCallers)),
		fmt.Sprintf("Количество перезвонов более 5 минут - %d", lateCallbacks),
		fmt.Sprintf("Не перезвонили/не написали - %d", missedCount-len(responded)),
	}
}

// chatResponded reports whether RetailCRM shows chat activity for the missed
// caller after (missed time − 5 minutes). Lookup failures degrade to "no
// response found" so a CRM hiccup never hides an unanswered caller.
func (b *Builder) chatResponded(ctx context.Context, m missedCall) bool {
	since := m.at.Add(-lateCallbackThreshold)
	customerID, err := b.CRM.CustomerIDByPhone(ctx, m.phone, since)
	if err != nil {
		b.log.Warn().Err(err).Str("phone", m.phone).Msg("customer lookup failed")
		metrics.IncAPIFailure("retailcrm")
		return false
	}
	if customerID == 0 {
		return false
	}
	ok, err := b.CRM.HasCustomerMessagesSince(ctx, customerID, since)
	if err != nil {
		b.log.Warn().Err(err).Int("customer_id", customerID).Msg("chat lookup failed")
		metrics.IncAPIFailure("retailcrm")
		return false
	}
	return ok
}
