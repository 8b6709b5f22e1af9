package retailcrm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, "test-key", "tropic", 5*time.Second), srv
}

func TestManagersPaginationAndNameFallbacks(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/v5/users") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("apiKey") != "test-key" {
			t.Errorf("missing apiKey, got %q", r.URL.Query().Get("apiKey"))
		}
		if r.URL.Query().Get("filter[isManager]") != "1" {
			t.Error("missing isManager filter")
		}
		switch r.URL.Query().Get("page") {
		case "1":
			fmt.Fprint(w, `{"success":true,"pagination":{"currentPage":1,"totalPageCount":2},
				"users":[{"id":1,"firstName":"Анна","lastName":"Иванова"}]}`)
		case "2":
			fmt.Fprint(w, `{"success":true,"pagination":{"currentPage":2,"totalPageCount":2},
				"users":[{"id":2,"email":"boris@example.com"},{"id":3}]}`)
		default:
			t.Errorf("unexpected page %s", r.URL.Query().Get("page"))
		}
	})

	managers, err := client.Managers(context.Background())
	if err != nil {
		t.Fatalf("Managers: %v", err)
	}
	if len(managers) != 3 {
		t.Fatalf("expected 3 managers, got %d", len(managers))
	}
	if managers[1] != "Анна Иванова" {
		t.Errorf("manager 1: got %q", managers[1])
	}
	if managers[2] != "boris@example.com" {
		t.Errorf("manager 2: got %q", managers[2])
	}
	if managers[3] != "Manager 3" {
		t.Errorf("manager 3: got %q", managers[3])
	}
}

func TestTasksDueBetweenStopsOnLastPage(t *testing.T) {
	var pagesServed int
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		pagesServed++
		if r.URL.Query().Get("filter[dateFrom]") == "" {
			t.Error("missing dateFrom filter")
		}
		fmt.Fprint(w, `{"success":true,"pagination":{"currentPage":1,"totalPageCount":1},
			"tasks":[{"id":10,"performer":1,"complete":false,"datetime":"2026-08-29 10:00:00"}]}`)
	})

	from := time.Date(2026, 8, 28, 21, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	tasks, err := client.TasksDueBetween(context.Background(), from, to)
	if err != nil {
		t.Fatalf("TasksDueBetween: %v", err)
	}
	if pagesServed != 1 {
		t.Errorf("expected a single page request, got %d", pagesServed)
	}
	if len(tasks) != 1 || tasks[0].ID != 10 {
		t.Fatalf("unexpected tasks: %+v", tasks)
	}
}

func TestOrdersCreatedBetweenSendsMethodFilters(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("site") != "tropic" {
			t.Errorf("site filter: got %q", q.Get("site"))
		}
		if q.Get("filter[orderMethod][0]") != "one-click" || q.Get("filter[orderMethod][1]") != "shopping-cart" {
			t.Errorf("order method filters missing: %v", q)
		}
		fmt.Fprint(w, `{"success":true,"pagination":{"currentPage":1,"totalPageCount":1},
			"orders":[{"id":55,"number":"55C","createdAt":"2026-08-29 12:30:00","phone":"+79161234567","orderMethod":"one-click"}]}`)
	})

	from := time.Date(2026, 8, 29, 9, 0, 0, 0, time.FixedZone("MSK", 3*3600))
	orders, err := client.OrdersCreatedBetween(context.Background(), from, from.Add(11*time.Hour), []string{"one-click", "shopping-cart"})
	if err != nil {
		t.Fatalf("OrdersCreatedBetween: %v", err)
	}
	if len(orders) != 1 || orders[0].Number != "55C" {
		t.Fatalf("unexpected orders: %+v", orders)
	}
}

func TestEnvelopeErrorSurfaced(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":false,"errorMsg":"wrong apiKey"}`)
	})

	_, err := client.Managers(context.Background())
	if err == nil || !strings.Contains(err.Error(), "wrong apiKey") {
		t.Fatalf("expected envelope error, got %v", err)
	}
}

func TestCustomerIDByPhoneFallsBackToCustomerSearch(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/api/v5/orders"):
			if r.URL.Query().Get("filter[customer]") != "79161234567" {
				t.Errorf("customer filter: %q", r.URL.Query().Get("filter[customer]"))
			}
			fmt.Fprint(w, `{"success":true,"orders":[]}`)
		case strings.HasPrefix(r.URL.Path, "/api/v5/customers"):
			fmt.Fprint(w, `{"success":true,"customers":[{"id":901,"firstName":"Petr"}]}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	since := time.Date(2026, 8, 29, 8, 0, 0, 0, time.FixedZone("MSK", 3*3600))
	id, err := client.CustomerIDByPhone(context.Background(), "79161234567", since)
	if err != nil {
		t.Fatalf("CustomerIDByPhone: %v", err)
	}
	if id != 901 {
		t.Fatalf("expected customer 901, got %d", id)
	}
}

func TestCustomerIDByPhonePrefersOrderCustomer(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":true,"orders":[{"id":1,"customer":{"id":777}}]}`)
	})

	id, err := client.CustomerIDByPhone(context.Background(), "79161234567", time.Now())
	if err != nil {
		t.Fatalf("CustomerIDByPhone: %v", err)
	}
	if id != 777 {
		t.Fatalf("expected customer 777, got %d", id)
	}
}

func TestHasCustomerMessagesSince(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("filter[customerIds][0]") != "777" {
			t.Errorf("customerIds filter: %q", r.URL.Query().Get("filter[customerIds][0]"))
		}
		fmt.Fprint(w, `{"success":true,"customerMessages":[{"id":5}]}`)
	})

	ok, err := client.HasCustomerMessagesSince(context.Background(), 777, time.Now())
	if err != nil {
		t.Fatalf("HasCustomerMessagesSince: %v", err)
	}
	if !ok {
		t.Fatal("expected messages to be found")
	}
}

func TestOrderEditURL(t *testing.T) {
	c := New("https://tropic.retailcrm.ru", "k", "tropic", time.Second)
	if got := c.OrderEditURL(42); got != "https://tropic.retailcrm.ru/orders/42/edit" {
		t.Errorf("OrderEditURL: %s", got)
	}
	if got := c.CustomerEditURL(7); got != "https://tropic.retailcrm.ru/customers/7/edit" {
		t.Errorf("CustomerEditURL: %s", got)
	}
}

func TestServerErrorStatus(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.Managers(context.Background())
	if err == nil || !strings.Contains(err.Error(), "status 502") {
		t.Fatalf("expected status error, got %v", err)
	}
}
