package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nazeru/order-console-go/pkg/tx/common"
)

type recordingLog struct {
	created  []common.StepName
	finished []common.StepName
	statuses []common.TxStatus
}

func (l *recordingLog) Create(_ context.Context, _ common.TxID, _ string, steps []common.StepName) error {
	l.created = steps
	return nil
}

func (l *recordingLog) StepFinished(_ context.Context, _ common.TxID, step common.StepName, _ error) error {
	l.finished = append(l.finished, step)
	return nil
}

func (l *recordingLog) SetStatus(_ context.Context, _ common.TxID, status common.TxStatus) error {
	l.statuses = append(l.statuses, status)
	return nil
}

func step(name common.StepName, kind common.StepKind, calls *[]common.StepName, err error) Step {
	return Step{Name: name, Kind: kind, Run: func(context.Context) error {
		*calls = append(*calls, name)
		return err
	}}
}

func TestExecuteBlockingFailureStopsRun(t *testing.T) {
	var calls []common.StepName
	log := &recordingLog{}
	e := &Engine{Log: log}
	boom := errors.New("gateway down")

	res := e.Execute(context.Background(), "tx-1", "B", []Step{
		step(common.StepValidate, common.Blocking, &calls, nil),
		step(common.StepReversePayment, common.Blocking, &calls, boom),
		step(common.StepPersist, common.Blocking, &calls, nil),
		step(common.StepNotifyCustomer, common.BestEffort, &calls, nil),
	})

	assert.Equal(t, common.TxAborted, res.Status)
	assert.Equal(t, []common.StepName{common.StepValidate, common.StepReversePayment}, calls)
	assert.Equal(t, []common.StepName{common.StepValidate}, res.Completed)
	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, boom)
	var se StepError
	require.ErrorAs(t, res.Err, &se)
	assert.Equal(t, common.StepReversePayment, se.Step)
	assert.Len(t, log.created, 4)
	assert.Equal(t, []common.TxStatus{common.TxAborted}, log.statuses)
}

func TestExecuteBestEffortFailureCommits(t *testing.T) {
	var calls []common.StepName
	e := &Engine{}
	smsErr := errors.New("sms 503")

	res := e.Execute(context.Background(), "tx-2", "A", []Step{
		step(common.StepPersist, common.Blocking, &calls, nil),
		step(common.StepNotifyCustomer, common.BestEffort, &calls, smsErr),
	})

	assert.Equal(t, common.TxCommitted, res.Status)
	assert.NoError(t, res.Err)
	assert.Equal(t, []common.StepName{common.StepPersist, common.StepNotifyCustomer}, calls)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, common.StepNotifyCustomer, res.Warnings[0].Step)
	assert.ErrorIs(t, res.Warnings[0], smsErr)
}
