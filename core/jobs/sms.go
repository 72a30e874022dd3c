package jobs

import (
	"context"

	"medrota-iam/core/utils"
)

// SMSDelivery is the outbound gateway call. The default implementation
// only logs; a real gateway plugs in at wiring time.
type SMSDelivery func(ctx context.Context, phone, message string) error

func LogDelivery(logger *utils.Logger) SMSDelivery {
	return func(_ context.Context, phone, _ string) error {
		if logger != nil {
			logger.Printf("sms dispatched to %s", utils.MaskPhone(phone))
		}
		return nil
	}
}

// AsyncSMSSender queues deliveries on the worker so enrollment and
// login never wait on the gateway.
type AsyncSMSSender struct {
	worker  *Worker
	deliver SMSDelivery
}

func NewAsyncSMSSender(worker *Worker, deliver SMSDelivery) *AsyncSMSSender {
	return &AsyncSMSSender{worker: worker, deliver: deliver}
}

func (s *AsyncSMSSender) Send(_ context.Context, phone, message string) error {
	s.worker.Submit("sms_delivery", func(ctx context.Context) error {
		return s.deliver(ctx, phone, message)
	})
	return nil
}
