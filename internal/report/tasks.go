package report

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Lavr-18/OKK-Tropic/internal/metrics"
	"github.com/Lavr-18/OKK-Tropic/internal/timeutil"
)

type managerTaskStats struct {
	assigned  int
	completed int
	carried   int
}

// tasksSection builds section 1: per-manager task completion for the report
// day. A task counts as carried over when it is incomplete and its due
// datetime was moved into the next MSK day.
func (b *Builder) tasksSection(ctx context.Context, day time.Time) []string {
	managers, err := b.CRM.Managers(ctx)
	if err != nil {
		b.log.Error().Err(err).Msg("fetch managers")
		metrics.IncAPIFailure("retailcrm")
		return []string{"Не удалось получить список менеджеров."}
	}

	dayStart, dayEnd := timeutil.DayBounds(day)
	tasks, err := b.CRM.TasksDueBetween(ctx, dayStart.UTC(), dayEnd.UTC())
	if err != nil {
		b.log.Error().Err(err).Msg("fetch tasks")
		metrics.IncAPIFailure("retailcrm")
		return []string{"Не удалось получить задачи со сроком выполнения в отчетный период."}
	}

	nextStart, nextEnd := timeutil.DayBounds(day.AddDate(0, 0, 1))
	nextStartUTC, nextEndUTC := nextStart.UTC(), nextEnd.UTC()

	stats := make(map[int]*managerTaskStats, len(managers))
	for id := range managers {
		stats[id] = &managerTaskStats{}
	}

	for _, task := range tasks {
		st, known := stats[task.Performer]
		if !known {
			continue
		}
		st.assigned++
		if task.Complete {
			st.completed++
			continue
		}
		due, err := timeutil.ParseCRMTime(task.Datetime)
		if err != nil {
			continue
		}
		if !due.Before(nextStartUTC) && !due.After(nextEndUTC) {
			st.carried++
		}
	}

	total := 0
	for _, st := range stats {
		total += st.assigned
	}

	lines := []string{fmt.Sprintf("1. Проверка невыполненных задач: %d", total)}

	ids := make([]int, 0, len(managers))
	for id := range managers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return managers[ids[i]] < managers[ids[j]] })

	for _, id := range ids {
		st := stats[id]
		if st.assigned == 0 {
			continue
		}
		exclamation := ""
		if st.assigned-st.completed-st.carried > 0 {
			exclamation = "❗"
		}
		firstName, _, _ := strings.Cut(managers[id], " ")
		lines = append(lines, fmt.Sprintf("%s - поставлено %d/выполнено %d (перенесенных было %d)%s",
			firstName, st.assigned, st.completed, st.carried, exclamation))
	}
	return lines
}
