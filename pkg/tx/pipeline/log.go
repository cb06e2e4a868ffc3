package pipeline

import (
	"context"

	"github.com/nazeru/order-console-go/pkg/logging"
	"github.com/nazeru/order-console-go/pkg/tx/common"
)

type TxLogStore interface {
	Create(ctx context.Context, txid common.TxID, orderID string, steps []common.StepName) error
	StepFinished(ctx context.Context, txid common.TxID, step common.StepName, err error) error
	SetStatus(ctx context.Context, txid common.TxID, status common.TxStatus) error
}

type LogStore struct {
	Service string
}

func (l LogStore) Create(_ context.Context, txid common.TxID, orderID string, _ []common.StepName) error {
	logging.Log(logging.Fields{Service: l.Service, OrderID: orderID, EventID: string(txid), Status: string(common.TxStarted)})
	return nil
}

func (l LogStore) StepFinished(_ context.Context, txid common.TxID, step common.StepName, err error) error {
	f := logging.Fields{Service: l.Service, EventID: string(txid), Step: string(step), Status: "ok"}
	if err != nil {
		f.Status = "failed"
		logging.Warn(f, err)
		return nil
	}
	logging.Log(f)
	return nil
}

func (l LogStore) SetStatus(_ context.Context, txid common.TxID, status common.TxStatus) error {
	logging.Log(logging.Fields{Service: l.Service, EventID: string(txid), Status: string(status)})
	return nil
}

type nopLog struct{}

func (nopLog) Create(context.Context, common.TxID, string, []common.StepName) error { return nil }
func (nopLog) StepFinished(context.Context, common.TxID, common.StepName, error) error {
	return nil
}
func (nopLog) SetStatus(context.Context, common.TxID, common.TxStatus) error { return nil }
