package client

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/pkg/sys"
	"github.com/yanun0323/pkg/ws"
)

// WsOrderStream consumes the stream gateway's normalized order-update feed.
// The gateway multiplexes the venue-specific private streams and republishes
// terminal order states as plain JSON frames, one connection per engine
// process.
type WsOrderStream struct {
	wss *ws.WebSocket
}

func NewWsOrderStream(ctx context.Context, url string) *WsOrderStream {
	return &WsOrderStream{
		wss: ws.New(ctx, url),
	}
}

func (s *WsOrderStream) Start(ctx context.Context) error {
	if err := s.wss.Start(ctx); err != nil {
		return errors.Wrap(err, "start order stream")
	}

	return nil
}

func (s *WsOrderStream) Close() {
	s.wss.Close()
}

type streamSubscribeRequest struct {
	Method  string `json:"method"`
	OrderID string `json:"orderId"`
	Symbol  string `json:"symbol"`
	ID      int64  `json:"id"`
}

type streamSubscribeResponse struct {
	ID     int64 `json:"id"`
	Result any   `json:"result"`
}

type streamOrderUpdate struct {
	EventType string          `json:"e"`
	OrderID   string          `json:"orderId"`
	Status    string          `json:"status"`
	Filled    decimal.Decimal `json:"filled"`
	Cost      decimal.Decimal `json:"cost"`
}

// Watch subscribes to one order's updates and invokes handler for each one
// until unsubscribed.
func (s *WsOrderStream) Watch(ctx context.Context, orderID, symbol string, handler func(OrderUpdate)) (func(), error) {
	appendIntoRegister := true
	if err := s.wss.SendAndWait(ctx, ws.Sidecar{
		Sender: func(ctx context.Context, ws *ws.WebSocket) error {
			payload := streamSubscribeRequest{
				Method:  "SUBSCRIBE",
				OrderID: orderID,
				Symbol:  symbol,
				ID:      1,
			}

			if err := ws.WriteJSON(payload); err != nil {
				return errors.Wrap(err, "write subscribe payload").With("payload", payload)
			}

			return nil
		},
		Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
			var resp streamSubscribeResponse
			if err := m.Unmarshal(&resp); err != nil || resp.ID != 1 {
				return false, nil
			}

			if resp.Result != nil {
				return false, errors.Errorf("subscribe and wait, err: %+v", resp.Result)
			}
			return true, nil
		},
	}, appendIntoRegister); err != nil {
		return nil, errors.Wrap(err, "send and wait")
	}

	ch, cancel := s.wss.Subscribe()

	go func() {
		defer cancel()
		for {
			select {
			case <-sys.Shutdown():
				return
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}

				update, ok := ws.ReadMessage[streamOrderUpdate](m)
				if !ok || update.EventType != "orderUpdate" || update.OrderID != orderID {
					continue
				}

				handler(OrderUpdate{
					OrderID: update.OrderID,
					Status:  TradeStatus(update.Status),
					Filled:  update.Filled,
					Cost:    update.Cost,
				})
			}
		}
	}()

	return cancel, nil
}

var _ OrderStream = (*WsOrderStream)(nil)
