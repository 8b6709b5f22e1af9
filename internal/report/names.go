package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Lavr-18/OKK-Tropic/internal/metrics"
	"github.com/Lavr-18/OKK-Tropic/internal/namecheck"
	"github.com/Lavr-18/OKK-Tropic/internal/timeutil"
)

type nameProblem struct {
	orderID    int
	customerID int
	fullName   string
	errors     []string
}

// namesSection audits customer name fields on the report day's orders. Each
// customer is checked once even when they placed several orders.
func (b *Builder) namesSection(ctx context.Context, day time.Time) []string {
	from, till := timeutil.DayBounds(day)
	orders, err := b.CRM.OrdersCreatedBetween(ctx, from, till, nil)
	if err != nil {
		b.log.Error().Err(err).Msg("fetch orders for name audit")
		metrics.IncAPIFailure("retailcrm")
		return []string{"Не удалось получить заказы из RetailCRM. Проверка отменена."}
	}

	var problems []nameProblem
	checked := make(map[int]struct{})
	for _, order := range orders {
		customer := order.Customer
		if customer == nil {
			continue
		}
		if _, done := checked[customer.ID]; done {
			continue
		}
		checked[customer.ID] = struct{}{}

		var errors []string
		lastNameEmpty := customer.LastName == ""

		metrics.IncNameCheck()
		if ok, verdict := b.Names.Check(ctx, customer.FirstName, namecheck.FieldFirstName, lastNameEmpty); !ok && !strings.EqualFold(strings.TrimSpace(verdict), "OK") {
			errors = append(errors, fmt.Sprintf("Имя ('%s') - Ошибка: %s", customer.FirstName, namecheck.RussianReason(verdict)))
		}
		if customer.LastName != "" {
			metrics.IncNameCheck()
			if ok, verdict := b.Names.Check(ctx, customer.LastName, namecheck.FieldLastName, false); !ok && !strings.EqualFold(strings.TrimSpace(verdict), "OK") {
				errors = append(errors, fmt.Sprintf("Фамилия ('%s') - Ошибка: %s", customer.LastName, namecheck.RussianReason(verdict)))
			}
		}
		if customer.Patronymic != "" {
			metrics.IncNameCheck()
			if ok, verdict := b.Names.Check(ctx, customer.Patronymic, namecheck.FieldPatronymic, false); !ok && !strings.EqualFold(strings.TrimSpace(verdict), "OK") {
				errors = append(errors, fmt.Sprintf("Отчество ('%s') - Ошибка: %s", customer.Patronymic, namecheck.RussianReason(verdict)))
			}
		}

		if len(errors) > 0 {
			metrics.IncNameFlagged()
			full := strings.TrimSpace(strings.Join([]string{customer.FirstName, customer.LastName, customer.Patronymic}, " "))
			problems = append(problems, nameProblem{
				orderID:    order.ID,
				customerID: customer.ID,
				fullName:   full,
				errors:     errors,
			})
		}
	}

	lines := []string{
		"--- Сводка по проверке ---",
		fmt.Sprintf("Всего проверено заказов: %d", len(orders)),
		fmt.Sprintf("Заказов с проблемами оформления ФИО: %d", len(problems)),
	}
	if len(problems) == 0 {
		return lines
	}

	lines = append(lines, "", "--- Детализация проблемных заказов ---")
	for _, p := range problems {
		lines = append(lines, "")
		lines = append(lines, fmt.Sprintf("Заказ ID: %d (ссылка: %s)", p.orderID, b.CRM.OrderEditURL(p.orderID)))
		lines = append(lines, fmt.Sprintf("  Клиент ID: %d (ссылка: %s)", p.customerID, b.CRM.CustomerEditURL(p.customerID)))
		lines = append(lines, fmt.Sprintf("  ФИО: %s", p.fullName))
		lines = append(lines, "  Проблемы:")
		for _, e := range p.errors {
			lines = append(lines, fmt.Sprintf("    - %s", e))
		}
	}
	return lines
}
