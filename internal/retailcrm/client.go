// Package retailcrm is a thin client for the RetailCRM v5 REST API covering
// the endpoints the daily report needs: users, tasks, orders, customers, and
// customer chat messages.
package retailcrm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Lavr-18/OKK-Tropic/internal/timeutil"
)

// pageLimit is the maximum page size RetailCRM accepts for list endpoints.
const pageLimit = 100

// Client talks to a single RetailCRM account.
type Client struct {
	baseURL string
	apiKey  string
	site    string
	http    *http.Client
}

// New creates a client. baseURL must be the account root (no /api/v5 suffix —
// config.NormalizeBaseURL takes care of that).
func New(baseURL, apiKey, site string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		site:    site,
		http:    &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the account root, used for building edit links.
func (c *Client) BaseURL() string { return c.baseURL }

// OrderEditURL returns the back-office edit link for an order.
func (c *Client) OrderEditURL(orderID int) string {
	return fmt.Sprintf("%s/orders/%d/edit", c.baseURL, orderID)
}

// CustomerEditURL returns the back-office edit link for a customer.
func (c *Client) CustomerEditURL(customerID int) string {
	return fmt.Sprintf("%s/customers/%d/edit", c.baseURL, customerID)
}

// get performs a GET against an /api/v5 path and decodes the envelope into out.
func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	params.Set("apiKey", c.apiKey)
	u := fmt.Sprintf("%s/api/v5%s?%s", c.baseURL, path, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("retailcrm %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("retailcrm %s: status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("retailcrm %s: decode: %w", path, err)
	}
	return nil
}

// checkEnvelope converts an unsuccessful API envelope into an error.
func checkEnvelope(path string, e envelope) error {
	if !e.Success {
		msg := e.ErrorMsg
		if msg == "" {
			msg = "unknown error"
		}
		return fmt.Errorf("retailcrm %s: %s", path, msg)
	}
	return nil
}

// lastPage reports whether the given page is the final one. Endpoints
// occasionally omit the pagination block; treat that as a single page.
func lastPage(p *pagination) bool {
	return p == nil || p.CurrentPage >= p.TotalPageCount
}

// Managers returns all active managers keyed by user id. The display name is
// "First Last", falling back to the email, then to "Manager <id>".
func (c *Client) Managers(ctx context.Context) (map[int]string, error) {
	managers := make(map[int]string)
	for page := 1; ; page++ {
		params := url.Values{}
		params.Set("filter[isManager]", "1")
		params.Set("filter[active]", "1")
		params.Set("limit", strconv.Itoa(pageLimit))
		params.Set("page", strconv.Itoa(page))

		var resp usersResponse
		if err := c.get(ctx, "/users", params, &resp); err != nil {
			return nil, err
		}
		if err := checkEnvelope("/users", resp.envelope); err != nil {
			return nil, err
		}
		for _, u := range resp.Users {
			name := strings.TrimSpace(u.FirstName + " " + u.LastName)
			if name == "" {
				name = u.Email
			}
			if name == "" {
				name = fmt.Sprintf("Manager %d", u.ID)
			}
			managers[u.ID] = name
		}
		if lastPage(resp.Pagination) {
			break
		}
	}
	return managers, nil
}

// TasksDueBetween returns tasks whose due datetime falls inside [from, to]
// (both UTC).
func (c *Client) TasksDueBetween(ctx context.Context, from, to time.Time) ([]Task, error) {
	var tasks []Task
	for page := 1; ; page++ {
		params := url.Values{}
		params.Set("filter[dateFrom]", timeutil.FormatAPI(from))
		params.Set("filter[dateTo]", timeutil.FormatAPI(to))
		params.Set("limit", strconv.Itoa(pageLimit))
		params.Set("page", strconv.Itoa(page))

		var resp tasksResponse
		if err := c.get(ctx, "/tasks", params, &resp); err != nil {
			return nil, err
		}
		if err := checkEnvelope("/tasks", resp.envelope); err != nil {
			return nil, err
		}
		tasks = append(tasks, resp.Tasks...)
		if len(resp.Tasks) == 0 || lastPage(resp.Pagination) {
			break
		}
	}
	return tasks, nil
}

// OrdersCreatedBetween returns orders created within [from, to] (times are
// rendered in their own zone, matching how the account stores createdAt).
// orderMethods optionally restricts to the given method codes.
func (c *Client) OrdersCreatedBetween(ctx context.Context, from, to time.Time, orderMethods []string) ([]Order, error) {
	var orders []Order
	for page := 1; ; page++ {
		params := url.Values{}
		params.Set("site", c.site)
		params.Set("filter[createdAtFrom]", timeutil.FormatFilter(from))
		params.Set("filter[createdAtTo]", timeutil.FormatFilter(to))
		for i, m := range orderMethods {
			params.Set(fmt.Sprintf("filter[orderMethod][%d]", i), m)
		}
		params.Set("limit", strconv.Itoa(pageLimit))
		params.Set("page", strconv.Itoa(page))

		var resp ordersResponse
		if err := c.get(ctx, "/orders", params, &resp); err != nil {
			return nil, err
		}
		if err := checkEnvelope("/orders", resp.envelope); err != nil {
			return nil, err
		}
		orders = append(orders, resp.Orders...)
		if len(resp.Orders) == 0 || lastPage(resp.Pagination) {
			break
		}
	}
	return orders, nil
}

// CustomerIDByPhone resolves a phone number to a customer id, first through
// orders created at/after since, then through the customer search. Returns 0
// when nothing matches.
func (c *Client) CustomerIDByPhone(ctx context.Context, phoneNumber string, since time.Time) (int, error) {
	params := url.Values{}
	params.Set("filter[customer]", phoneNumber)
	params.Set("filter[createdAtFrom]", timeutil.FormatFilter(since))

	var orders ordersResponse
	if err := c.get(ctx, "/orders", params, &orders); err != nil {
		return 0, err
	}
	if orders.Success && len(orders.Orders) > 0 && orders.Orders[0].Customer != nil {
		return orders.Orders[0].Customer.ID, nil
	}

	// The customer search treats the phone as a free-text name filter; that is
	// how the account's data is keyed for chat-only contacts.
	cparams := url.Values{}
	cparams.Set("filter[name]", phoneNumber)

	var customers customersResponse
	if err := c.get(ctx, "/customers", cparams, &customers); err != nil {
		return 0, err
	}
	if customers.Success && len(customers.Customers) > 0 {
		return customers.Customers[0].ID, nil
	}
	return 0, nil
}

// HasCustomerMessagesSince reports whether the customer has any chat messages
// created at/after since.
func (c *Client) HasCustomerMessagesSince(ctx context.Context, customerID int, since time.Time) (bool, error) {
	params := url.Values{}
	params.Set("filter[customerIds][0]", strconv.Itoa(customerID))
	params.Set("filter[createdAtFrom]", timeutil.FormatFilter(since))

	var resp messagesResponse
	if err := c.get(ctx, "/customer-messages", params, &resp); err != nil {
		return false, err
	}
	return resp.Success && len(resp.CustomerMessages) > 0, nil
}
