package dedup

// Config tunes the candidate search and adjudication thresholds (§4.9).
type Config struct {
	// CandidateLimit bounds how many ANN hits the finder considers per item.
	CandidateLimit int
	// SimilarityThreshold is the minimum vector score (§4.7) a candidate
	// must clear to be sent to adjudication at all.
	SimilarityThreshold float32
	// AutoMergeThreshold is the adjudicator confidence (P4, 0-100) at or
	// above which a match is merged without human confirmation.
	AutoMergeThreshold int
	// MaxInflightLLMCalls bounds C9's fan-out concurrency across items.
	MaxInflightLLMCalls int
}

// DefaultConfig mirrors the spec's documented defaults (§4.9, §6).
var DefaultConfig = Config{
	CandidateLimit:       5,
	SimilarityThreshold:  0.80,
	AutoMergeThreshold:   90,
	MaxInflightLLMCalls:  4,
}
