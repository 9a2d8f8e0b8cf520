package services

import (
	"sort"
	"strings"

	"github.com/cafe-delivery/storefront/internal/domain"
)

// History tabs.
const (
	TabOngoing   = "ongoing"
	TabOrdered   = "ordered"
	TabDelivered = "delivered"
	TabCancelled = "cancelled"
)

// Order actions.
const (
	ActionCancel          = "cancel"
	ActionConfirmDelivery = "confirm_delivery"
	ActionContactCafe     = "contact_cafe"
	ActionConfirm         = "confirm"
)

// DefaultTab is the tab shown first in the order history.
const DefaultTab = TabOngoing

// StatusInfo is the presentation of one order status.
type StatusInfo struct {
	Status          string   `json:"status"`
	Label           string   `json:"label"`
	Color           string   `json:"color"`
	Step            float64  `json:"step"`
	ProgressPercent float64  `json:"progress_percent"`
	ShowProgress    bool     `json:"show_progress"`
	Categories      []string `json:"categories"`
	Actions         []string `json:"actions"`
}

type statusVisual struct {
	label string
	color string
	step  float64
}

var statusVisuals = map[string]statusVisual{
	domain.StatusPending:   {label: "Pending", color: "blue-500", step: 1},
	domain.StatusConfirmed: {label: "Confirmed", color: "blue-600", step: 1.5},
	domain.StatusPreparing: {label: "Preparing", color: "yellow-500", step: 2},
	domain.StatusReady:     {label: "Ready", color: "orange-500", step: 3},
	domain.StatusOnTheWay:  {label: "On the Way", color: "purple-500", step: 4},
	domain.StatusDelivered: {label: "Delivered", color: "green-500", step: 5},
	domain.StatusCancelled: {label: "Cancelled", color: "red-500", step: 0},
}

var tabOrder = []string{TabOngoing, TabOrdered, TabDelivered, TabCancelled}

var tabStatuses = map[string][]string{
	TabOngoing: {
		domain.StatusPending,
		domain.StatusConfirmed,
		domain.StatusPreparing,
		domain.StatusReady,
		domain.StatusOnTheWay,
	},
	TabOrdered:   {domain.StatusPending},
	TabDelivered: {domain.StatusDelivered},
	TabCancelled: {domain.StatusCancelled},
}

var statusActions = map[string][]string{
	domain.StatusPending:   {ActionCancel},
	domain.StatusConfirmed: {ActionCancel},
	domain.StatusOnTheWay:  {ActionConfirmDelivery, ActionContactCafe},
	domain.StatusDelivered: {ActionContactCafe},
}

// DescribeStatus maps a status to its label, color, progress and allowed actions. Unknown
// statuses render like pending but belong to no tab and allow no action.
func DescribeStatus(status string) StatusInfo {
	status = strings.ToLower(strings.TrimSpace(status))
	visual, known := statusVisuals[status]
	if !known {
		visual = statusVisuals[domain.StatusPending]
	}
	info := StatusInfo{
		Status:          status,
		Label:           visual.label,
		Color:           visual.color,
		Step:            visual.step,
		ProgressPercent: (visual.step - 1) / 4 * 100,
		ShowProgress:    status != domain.StatusCancelled && status != domain.StatusDelivered,
		Categories:      StatusCategories(status),
		Actions:         AllowedActions(status),
	}
	if status == domain.StatusCancelled {
		info.ProgressPercent = 0
	}
	return info
}

// StatusCategories lists the tabs a status belongs to.
func StatusCategories(status string) []string {
	categories := []string{}
	for _, tab := range tabOrder {
		for _, candidate := range tabStatuses[tab] {
			if candidate == status {
				categories = append(categories, tab)
				break
			}
		}
	}
	return categories
}

// AllowedActions lists the actions available to the customer for a status.
func AllowedActions(status string) []string {
	actions := statusActions[status]
	out := make([]string, len(actions))
	copy(out, actions)
	return out
}

// ActionAllowed reports whether action may be taken on an order in status.
func ActionAllowed(status, action string) bool {
	for _, allowed := range statusActions[status] {
		if allowed == action {
			return true
		}
	}
	return false
}

// GroupOrders buckets orders into every tab, newest first, and counts each tab.
func GroupOrders(orders []OrderView) OrderGroups {
	sorted := make([]OrderView, len(orders))
	copy(sorted, orders)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Order.CreatedAt, sorted[j].Order.CreatedAt
		if a == nil || b == nil {
			return a != nil
		}
		return a.After(*b)
	})

	groups := OrderGroups{
		DefaultTab: DefaultTab,
		Tabs:       make(map[string][]OrderView, len(tabOrder)),
		Counts:     make(map[string]int, len(tabOrder)),
	}
	for _, tab := range tabOrder {
		groups.Tabs[tab] = []OrderView{}
		groups.Counts[tab] = 0
	}
	for _, view := range sorted {
		for _, tab := range view.Status.Categories {
			groups.Tabs[tab] = append(groups.Tabs[tab], view)
			groups.Counts[tab]++
		}
	}
	return groups
}

func isOngoing(status string) bool {
	for _, candidate := range tabStatuses[TabOngoing] {
		if candidate == status {
			return true
		}
	}
	return false
}
