package report

import (
	"context"
	"fmt"
	"time"

	"github.com/Lavr-18/OKK-Tropic/internal/metrics"
	"github.com/Lavr-18/OKK-Tropic/internal/phone"
	"github.com/Lavr-18/OKK-Tropic/internal/timeutil"
)

// orderMethods are the site order-method codes whose orders require a
// manager callback within the contact deadline.
var orderMethods = []string{
	"one-click",
	"zadat-vopros",
	"zakazat-uslugu",
	"shopping-cart",
	"khotite-uvidet-foto",
}

// contactDeadline is how quickly a manager must call a new order back.
const contactDeadline = 10 * time.Minute

// ordersSection builds section 3: orders whose first outgoing call came
// later than the contact deadline, with a detail line per analyzed order.
func (b *Builder) ordersSection(ctx context.Context, day time.Time) []string {
	from, till := timeutil.OrdersWindow(day)

	orders, err := b.CRM.OrdersCreatedBetween(ctx, from, till.Add(time.Second), orderMethods)
	if err != nil {
		b.log.Error().Err(err).Msg("fetch orders")
		metrics.IncAPIFailure("retailcrm")
		return []string{"3. Количество заказов, просроченных обработку - Ошибка получения данных RetailCRM."}
	}

	calls, err := b.Calls.CallsReport(ctx, from, till.Add(time.Second))
	if err != nil {
		b.log.Error().Err(err).Msg("fetch uis calls")
		metrics.IncAPIFailure("uis")
		return []string{"3. Количество заказов, просроченных обработку - Ошибка получения данных UIS."}
	}

	outgoing := make(map[string][]time.Time)
	for _, call := range calls {
		if call.Direction != "out" || call.ContactPhone == "" || call.StartTime == "" {
			continue
		}
		number := phone.Normalize(call.ContactPhone)
		if number == "" {
			continue
		}
		at, err := timeutil.ParseCRMTime(call.StartTime)
		if err != nil {
			continue
		}
		outgoing[number] = append(outgoing[number], at)
	}

	var (
		delayed       int
		relevant      int
		outsideWindow int
		details       []string
	)
	for _, order := range orders {
		number := order.Number
		if number == "" {
			number = fmt.Sprintf("%d", order.ID)
		}
		customerPhone := phone.Normalize(order.CustomerPhone())
		if order.CreatedAt == "" || customerPhone == "" {
			b.log.Debug().Int("order_id", order.ID).Msg("order skipped: no createdAt or phone")
			continue
		}
		createdAt, err := timeutil.ParseCRMTime(order.CreatedAt)
		if err != nil {
			b.log.Warn().Int("order_id", order.ID).Str("created_at", order.CreatedAt).Msg("bad order createdAt")
			continue
		}
		createdMSK := createdAt.In(timeutil.MSK)
		if createdMSK.Before(from) || createdMSK.After(till) {
			outsideWindow++
			continue
		}
		relevant++

		deadline := createdAt.Add(contactDeadline)
		var earliestContact time.Time
		inTime := false
		for _, at := range outgoing[customerPhone] {
			if at.Before(createdAt) {
				continue
			}
			if earliestContact.IsZero() || at.Before(earliestContact) {
				earliestContact = at
			}
			if !at.After(deadline) {
				inTime = true
			}
		}

		contact := "Нет контакта"
		if !earliestContact.IsZero() {
			contact = earliestContact.In(timeutil.MSK).Format("2006-01-02 15:04:05")
		}
		status := "ОБРАБОТАН ВОВРЕМЯ"
		if !inTime {
			status = "ПРОСРОЧЕН"
			delayed++
		}
		details = append(details, fmt.Sprintf("Заказ %s (%s): Создан в %s. Первый контакт: %s. Статус: %s.",
			number, b.CRM.OrderEditURL(order.ID), createdMSK.Format("2006-01-02 15:04:05"), contact, status))
	}

	lines := []string{
		fmt.Sprintf("3. Количество заказов, просроченных обработку - %d / %d", delayed, relevant),
		fmt.Sprintf("Количество заказов, созданных в нерабочее время (не с 09:00 до 20:00) - %d", outsideWindow),
	}
	return append(lines, details...)
}
