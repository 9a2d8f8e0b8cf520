package domain

import "github.com/shopspring/decimal"

// DashboardStats summarises the café for the admin console.
type DashboardStats struct {
	TotalOrders       int             `json:"total_orders"`
	TotalUsers        int             `json:"total_users"`
	TotalFoods        int             `json:"total_foods"`
	TotalDrinks       int             `json:"total_drinks"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	PendingOrders     int             `json:"pending_orders"`
	DeliveredToday    int             `json:"delivered_today"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
	RecentOrders      []Order         `json:"recent_orders"`
	TopProducts       []ProductSales  `json:"top_products"`
	// Fallback is set when the stats were computed locally from the order list.
	Fallback bool `json:"fallback"`
}

// ProductSales aggregates quantity and revenue for one menu item.
type ProductSales struct {
	ID      ID              `json:"id"`
	Name    string          `json:"name"`
	Type    string          `json:"type"`
	Sales   int             `json:"sales"`
	Revenue decimal.Decimal `json:"revenue"`
}

// CustomerSpend aggregates the orders of one customer.
type CustomerSpend struct {
	CustomerID ID              `json:"customer_id"`
	OrderCount int             `json:"order_count"`
	TotalSpent decimal.Decimal `json:"total_spent"`
}

// DailyPoint is one day of the analytics series.
type DailyPoint struct {
	Date    string          `json:"date"`
	Label   string          `json:"label"`
	Revenue decimal.Decimal `json:"revenue"`
	Orders  int             `json:"orders"`
}

// Analytics is the admin analytics report for a time range.
type Analytics struct {
	TimeRange     string          `json:"time_range"`
	Series        []DailyPoint    `json:"series"`
	TopProducts   []ProductSales  `json:"top_products"`
	TopCustomers  []CustomerSpend `json:"top_customers"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	TotalOrders   int             `json:"total_orders"`
	AvgOrderValue decimal.Decimal `json:"avg_order_value"`
	NewCustomers  int             `json:"new_customers"`
}
