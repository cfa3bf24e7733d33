package billing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/riverqueue/river"
)

// UnmatchedCustomerArgs is enqueued when an order names an email that no
// user has.
type UnmatchedCustomerArgs struct {
	Provider      string `json:"provider"`
	EventID       string `json:"event_id"`
	CustomerEmail string `json:"customer_email"`
	ProductID     string `json:"product_id,omitempty"`
	Tier          string `json:"tier"`
}

func (UnmatchedCustomerArgs) Kind() string { return "unmatched_customer" }

// AlertStore records that an alert was raised for an event.
type AlertStore interface {
	MarkAlerted(ctx context.Context, provider, eventID string) error
}

type UnmatchedCustomerWorker struct {
	river.WorkerDefaults[UnmatchedCustomerArgs]
	store AlertStore
	log   *slog.Logger
}

func NewUnmatchedCustomerWorker(store AlertStore, log *slog.Logger) *UnmatchedCustomerWorker {
	if log == nil {
		log = slog.Default()
	}
	return &UnmatchedCustomerWorker{store: store, log: log}
}

func (w *UnmatchedCustomerWorker) Work(ctx context.Context, job *river.Job[UnmatchedCustomerArgs]) error {
	return w.Alert(ctx, job.Args)
}

// Alert raises the operator-facing warning for args and stamps the event.
// Returning an error lets river retry the stamp.
func (w *UnmatchedCustomerWorker) Alert(ctx context.Context, args UnmatchedCustomerArgs) error {
	w.log.Warn("paid order for unknown customer",
		"provider", args.Provider,
		"event_id", args.EventID,
		"customer_email", args.CustomerEmail,
		"product_id", args.ProductID,
		"tier", args.Tier,
	)
	unmatchedAlertsTotal.Inc()
	if w.store == nil {
		return nil
	}
	if err := w.store.MarkAlerted(ctx, args.Provider, args.EventID); err != nil {
		return fmt.Errorf("mark event %s alerted: %w", args.EventID, err)
	}
	return nil
}
