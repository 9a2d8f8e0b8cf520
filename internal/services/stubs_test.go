package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cafe-delivery/storefront/internal/apiclient"
	"github.com/cafe-delivery/storefront/internal/domain"
)

var errStubNotFound = &apiclient.APIError{Status: 404, Text: "Not found."}

type stubOrderAPI struct {
	mu         sync.Mutex
	orders     map[domain.ID]domain.Order
	created    []domain.OrderSubmission
	actions    []string
	createErr  error
	createResp domain.Order
	listErr    error
	actionErr  error
	nextStatus map[string]string
}

func newStubOrderAPI(orders ...domain.Order) *stubOrderAPI {
	api := &stubOrderAPI{orders: map[domain.ID]domain.Order{}}
	for _, order := range orders {
		api.orders[order.ID] = order
	}
	api.nextStatus = map[string]string{
		ActionCancel:          domain.StatusCancelled,
		ActionConfirmDelivery: domain.StatusDelivered,
		ActionConfirm:         domain.StatusConfirmed,
	}
	return api
}

func (s *stubOrderAPI) CreateOrder(_ context.Context, submission domain.OrderSubmission) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, submission)
	if s.createErr != nil {
		return domain.Order{}, s.createErr
	}
	order := s.createResp
	if order.ID == "" {
		order.ID = "101"
	}
	if order.Status == "" {
		order.Status = domain.StatusPending
	}
	s.orders[order.ID] = order
	return order, nil
}

func (s *stubOrderAPI) ListOrders(context.Context) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]domain.Order, 0, len(s.orders))
	for _, order := range s.orders {
		out = append(out, order)
	}
	return out, nil
}

func (s *stubOrderAPI) GetOrder(_ context.Context, id domain.ID) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return domain.Order{}, errStubNotFound
	}
	return order, nil
}

func (s *stubOrderAPI) OrderAction(_ context.Context, id domain.ID, action string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, id.String()+":"+action)
	if s.actionErr != nil {
		return s.actionErr
	}
	order, ok := s.orders[id]
	if !ok {
		return errStubNotFound
	}
	if next, ok := s.nextStatus[action]; ok {
		order.Status = next
		s.orders[id] = order
	}
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []OrderEvent
	err    error
}

func (p *recordingPublisher) PublishOrderEvent(_ context.Context, event OrderEvent) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.events = append(p.events, event)
	return "msg-" + event.EventID, nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, event := range p.events {
		out = append(out, event.Type)
	}
	return out
}

type recordingLogger struct {
	mu     sync.Mutex
	events []string
}

func (l *recordingLogger) log(_ context.Context, event string, _ map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *recordingLogger) has(event string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.events {
		if e == event {
			return true
		}
	}
	return false
}

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

func timePtr(ts time.Time) *time.Time { return &ts }

var errBoom = errors.New("boom")
