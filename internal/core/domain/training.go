package domain

import "time"

// TrainingPair is one before/after document pair ready for training.
type TrainingPair struct {
	Key    string            `json:"key"`
	Before *DocumentSnapshot `json:"before"`
	After  *DocumentSnapshot `json:"after"`
}

// TrainingWarning records a recoverable condition absorbed during training.
type TrainingWarning struct {
	PairKey string `json:"pair_key"`
	Sheet   string `json:"sheet,omitempty"`
	Reason  string `json:"reason"`
}

// TrainingSummary is the outcome of one training run.
type TrainingSummary struct {
	PairsProcessed  int               `json:"pairs_processed"`
	SheetsTouched   int               `json:"sheets_touched"`
	ColumnsLearned  int               `json:"columns_learned"`
	FillableColumns int               `json:"fillable_columns"`
	OracleDegraded  bool              `json:"oracle_degraded,omitempty"`
	Warnings        []TrainingWarning `json:"warnings,omitempty"`
}

// TrainingJob is the queue payload asking a worker to train on one pair of
// document files.
type TrainingJob struct {
	ID         string    `json:"id"`
	BeforePath string    `json:"before_path"`
	AfterPath  string    `json:"after_path"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}
