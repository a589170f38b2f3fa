package types

// WorkflowBackfillInput drives one BackfillRangeWorkflow run. ProcessedSoFar
// and FailedBlocks carry across ContinueAsNew boundaries.
type WorkflowBackfillInput struct {
	JobID          string   `json:"job_id"`
	ChainID        uint64   `json:"chain_id"`
	Address        string   `json:"address"`
	StartBlock     uint64   `json:"start_block"` // 0 = market deploy block
	EndBlock       uint64   `json:"end_block"`   // 0 = current chain head
	RequestedBy    string   `json:"requested_by"`
	ProcessedSoFar uint64   `json:"processed_so_far"`
	FailedBlocks   []uint64 `json:"failed_blocks"`
}

// WorkflowBackfillOutput summarizes one complete backfill.
type WorkflowBackfillOutput struct {
	TotalBlocks  uint64   `json:"total_blocks"`
	Processed    uint64   `json:"processed"`
	FailedBlocks []uint64 `json:"failed_blocks"`
	DurationMs   float64  `json:"duration_ms"`
}

// ActivityResolveRangeInput asks for the effective block range of a job.
type ActivityResolveRangeInput struct {
	ChainID    uint64 `json:"chain_id"`
	Address    string `json:"address"`
	StartBlock uint64 `json:"start_block"`
	EndBlock   uint64 `json:"end_block"`
}

// ActivityResolveRangeOutput carries the defaults applied.
type ActivityResolveRangeOutput struct {
	StartBlock uint64 `json:"start_block"`
	EndBlock   uint64 `json:"end_block"`
}

// ActivityProcessBatchInput processes blocks [StartBlock, EndBlock] for one
// market, ascending.
type ActivityProcessBatchInput struct {
	ChainID    uint64 `json:"chain_id"`
	Address    string `json:"address"`
	StartBlock uint64 `json:"start_block"`
	EndBlock   uint64 `json:"end_block"`
}

// ActivityProcessBatchOutput reports per-batch results. FailedBlocks lists
// blocks whose processing failed; they do not abort the batch.
type ActivityProcessBatchOutput struct {
	Processed    uint64   `json:"processed"`
	Applied      uint64   `json:"applied"`
	Duplicates   uint64   `json:"duplicates"`
	FailedBlocks []uint64 `json:"failed_blocks"`
}

// ActivityRecordJobInput persists job progress for the admin API.
type ActivityRecordJobInput struct {
	JobID        string   `json:"job_id"`
	Status       string   `json:"status"`
	Processed    uint64   `json:"processed"`
	FailedBlocks []uint64 `json:"failed_blocks"`
	Error        string   `json:"error"`
}
