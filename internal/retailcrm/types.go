package retailcrm

// User is a RetailCRM manager account.
type User struct {
	ID        int    `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

// Task is a CRM task assigned to a manager. Datetime is the due datetime;
// RetailCRM renders both it and CreatedAt as naive UTC strings.
type Task struct {
	ID        int    `json:"id"`
	Performer int    `json:"performer"`
	Complete  bool   `json:"complete"`
	CreatedAt string `json:"createdAt"`
	Datetime  string `json:"datetime"`
}

// Phone is a customer phone entry.
type Phone struct {
	Number string `json:"number"`
}

// Customer is the customer subdocument embedded in orders.
type Customer struct {
	ID         int     `json:"id"`
	FirstName  string  `json:"firstName"`
	LastName   string  `json:"lastName"`
	Patronymic string  `json:"patronymic"`
	Phones     []Phone `json:"phones"`
}

// Order is a store order.
type Order struct {
	ID          int       `json:"id"`
	Number      string    `json:"number"`
	CreatedAt   string    `json:"createdAt"`
	Phone       string    `json:"phone"`
	OrderMethod string    `json:"orderMethod"`
	Customer    *Customer `json:"customer"`
}

// CustomerPhone returns the order-level phone, falling back to the first
// phone on the embedded customer.
func (o *Order) CustomerPhone() string {
	if o.Phone != "" {
		return o.Phone
	}
	if o.Customer != nil && len(o.Customer.Phones) > 0 {
		return o.Customer.Phones[0].Number
	}
	return ""
}

// pagination is the paging block every list endpoint returns.
type pagination struct {
	CurrentPage    int `json:"currentPage"`
	TotalPageCount int `json:"totalPageCount"`
}

// envelope is the common part of every v5 API response.
type envelope struct {
	Success    bool        `json:"success"`
	ErrorMsg   string      `json:"errorMsg"`
	Pagination *pagination `json:"pagination"`
}

type usersResponse struct {
	envelope
	Users []User `json:"users"`
}

type tasksResponse struct {
	envelope
	Tasks []Task `json:"tasks"`
}

type ordersResponse struct {
	envelope
	Orders []Order `json:"orders"`
}

type customersResponse struct {
	envelope
	Customers []Customer `json:"customers"`
}

type messagesResponse struct {
	envelope
	CustomerMessages []struct {
		ID int `json:"id"`
	} `json:"customerMessages"`
}
