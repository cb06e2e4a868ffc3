package pipeline

import (
	"context"
	"fmt"

	"github.com/nazeru/order-console-go/pkg/tx/common"
)

type Step struct {
	Name common.StepName
	Kind common.StepKind
	Run  func(ctx context.Context) error
}

type StepError struct {
	Step common.StepName
	Err  error
}

func (e StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e StepError) Unwrap() error {
	return e.Err
}

type Result struct {
	TxID      common.TxID
	Status    common.TxStatus
	Completed []common.StepName
	// Err is the blocking failure that aborted the run, nil when committed.
	Err error
	// Warnings collects best-effort failures of a committed run.
	Warnings []StepError
}

type Engine struct {
	Log TxLogStore
}

// Execute runs steps strictly in order. The first failing blocking step aborts
// the run and no later step is started.
func (e *Engine) Execute(ctx context.Context, txid common.TxID, orderID string, steps []Step) Result {
	log := e.Log
	if log == nil {
		log = nopLog{}
	}
	_ = log.Create(ctx, txid, orderID, stepNames(steps))

	res := Result{TxID: txid, Status: common.TxStarted}
	for _, s := range steps {
		err := s.Run(ctx)
		_ = log.StepFinished(ctx, txid, s.Name, err)
		if err == nil {
			res.Completed = append(res.Completed, s.Name)
			continue
		}
		if s.Kind == common.BestEffort {
			res.Warnings = append(res.Warnings, StepError{Step: s.Name, Err: err})
			continue
		}
		res.Status = common.TxAborted
		res.Err = StepError{Step: s.Name, Err: err}
		_ = log.SetStatus(ctx, txid, res.Status)
		return res
	}
	res.Status = common.TxCommitted
	_ = log.SetStatus(ctx, txid, res.Status)
	return res
}

func stepNames(steps []Step) []common.StepName {
	out := make([]common.StepName, 0, len(steps))
	for _, s := range steps {
		out = append(out, s.Name)
	}
	return out
}
