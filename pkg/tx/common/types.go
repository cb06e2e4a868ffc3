package common

type TxStatus string

const (
	TxStarted   TxStatus = "STARTED"
	TxCommitted TxStatus = "COMMITTED"
	TxAborted   TxStatus = "ABORTED"
)

type TxID string

type StepName string

const (
	StepValidate       StepName = "validate"
	StepReversePayment StepName = "reverse_payment"
	StepPersist        StepName = "persist"
	StepNotifyCustomer StepName = "notify_customer"
	StepLoyaltyAccrual StepName = "loyalty_accrual"
)

// StepKind decides what a failure of the step does to the rest of the run.
type StepKind int

const (
	// Blocking failures abort every step after them.
	Blocking StepKind = iota
	// BestEffort failures are reported and the run continues.
	BestEffort
)

func (k StepKind) String() string {
	if k == BestEffort {
		return "best_effort"
	}
	return "blocking"
}
