package orderbook

import "github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/domain"

func (b *Book) pendingFor(symbol string) (domain.PendingOrder, bool) {
	for _, o := range b.orders {
		if o.IsPending() && o.Symbol == symbol {
			return o, true
		}
	}
	return domain.PendingOrder{}, false
}

// HasPending reports whether symbol has a pending order.
func (b *Book) HasPending(symbol string) bool {
	_, ok := b.pendingFor(symbol)
	return ok
}

// Get returns the order with the given id.
func (b *Book) Get(orderID string) (domain.PendingOrder, bool) {
	i, ok := b.index[orderID]
	if !ok {
		return domain.PendingOrder{}, false
	}
	return b.orders[i], true
}

// Pending returns the orders still resting, oldest first. It is the part of
// the book that is persisted.
func (b *Book) Pending() []domain.PendingOrder {
	out := []domain.PendingOrder{}
	for _, o := range b.orders {
		if o.IsPending() {
			out = append(out, o)
		}
	}
	return out
}

// Orders returns the pending orders and the retained terminal ones.
func (b *Book) Orders() []domain.PendingOrder {
	return append([]domain.PendingOrder{}, b.orders...)
}

// Summary counts orders by status.
type Summary struct {
	Pending   int `json:"pending"`
	Triggered int `json:"triggered"`
	Expired   int `json:"expired"`
	Cancelled int `json:"cancelled"`
	Total     int `json:"total"`
}

// Summary returns order counts by status over the orders held in memory.
func (b *Book) Summary() Summary {
	s := Summary{Total: len(b.orders)}
	for _, o := range b.orders {
		switch o.Status {
		case domain.OrderPending:
			s.Pending++
		case domain.OrderTriggered:
			s.Triggered++
		case domain.OrderExpired:
			s.Expired++
		case domain.OrderCancelled:
			s.Cancelled++
		}
	}
	return s
}
