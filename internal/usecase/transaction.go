package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xavierca1/zag-leads/internal/infra/logger"
)

// Transaction runs operations in order. When one fails, the compensations of
// the operations that already succeeded run in reverse order.
type Transaction struct {
	operations []Operation
	log        *logger.Logger
}

type Operation struct {
	Name       string
	Fn         func(context.Context) error
	Compensate *Compensation
}

type Compensation struct {
	Name string
	Fn   func(context.Context) error
}

func NewTransaction(log *logger.Logger) *Transaction {
	if log == nil {
		log = logger.Discard()
	}
	return &Transaction{log: log}
}

func (t *Transaction) AddOperation(name string, fn func(context.Context) error) {
	t.operations = append(t.operations, Operation{Name: name, Fn: fn})
}

// AddCompensation attaches fn to the most recently added operation.
func (t *Transaction) AddCompensation(name string, fn func(context.Context) error) {
	if len(t.operations) == 0 {
		return
	}
	t.operations[len(t.operations)-1].Compensate = &Compensation{Name: name, Fn: fn}
}

func (t *Transaction) Execute(ctx context.Context) error {
	for i, op := range t.operations {
		if err := op.Fn(ctx); err != nil {
			t.rollback(ctx, i)
			return fmt.Errorf("operation '%s' failed: %w (rolled back %d operations)", op.Name, err, i)
		}
	}
	return nil
}

func (t *Transaction) rollback(ctx context.Context, failedAtIndex int) {
	// compensations must still run when the failure was a cancelled context
	ctx = context.WithoutCancel(ctx)
	for i := failedAtIndex - 1; i >= 0; i-- {
		comp := t.operations[i].Compensate
		if comp == nil {
			continue
		}
		if err := comp.Fn(ctx); err != nil {
			t.log.Error("compensation_failed",
				slog.String("compensation", comp.Name),
				slog.String("operation", t.operations[i].Name),
				slog.String("error", err.Error()),
			)
		}
	}
}
