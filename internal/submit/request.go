package submit

import (
	"net/url"
	"time"

	"github.com/Mallarb20000/ScorespokenC-sub001/internal/audio"
	"github.com/Mallarb20000/ScorespokenC-sub001/internal/scoreerr"
)

// Request describes one submission to the scoring endpoint. Answers line up
// with Questions by index; alternatively a single merged artifact stands in
// for all answers. Zero-valued Timeout, MaxRetries and BaseDelay inherit
// the client's configured defaults (MaxRetries of -1 inherits, 0 means no
// retries).
type Request struct {
	TestType  string
	Questions []string
	Answers   []*audio.Segment
	Merged    *audio.MergedArtifact
	Metadata  map[string]string

	Endpoint   string
	Timeout    time.Duration
	MaxRetries int
	BaseDelay  time.Duration
}

// NewRequest builds a request with the orchestrator defaults left to the
// client configuration.
func NewRequest(testType string, questions []string) *Request {
	return &Request{
		TestType:   testType,
		Questions:  questions,
		MaxRetries: -1,
	}
}

// Validate fails fast with a non-retryable VALIDATION_ERROR before any
// network traffic: every question needs a non-empty, non-zero-length answer.
func (r *Request) Validate() error {
	if r.TestType == "" {
		return scoreerr.New(scoreerr.CodeValidation, "missing test type", false)
	}
	if len(r.Questions) == 0 {
		return scoreerr.New(scoreerr.CodeValidation, "no questions to submit", false)
	}
	for i, q := range r.Questions {
		if q == "" {
			return scoreerr.Newf(scoreerr.CodeValidation, false, "question %d is empty", i+1)
		}
	}

	if r.Endpoint != "" {
		u, err := url.Parse(r.Endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return scoreerr.Newf(scoreerr.CodeValidation, false,
				"invalid endpoint %q", r.Endpoint)
		}
	}

	if r.Merged != nil {
		if len(r.Merged.Data) == 0 {
			return scoreerr.New(scoreerr.CodeValidation, "merged artifact is empty", false)
		}
		// A merged artifact stands in for the answers on the wire, but
		// the per-question answers still back it: when they are present
		// they are checked below so a silent gap in one answer cannot
		// ride along inside the merge.
		if len(r.Answers) == 0 {
			return nil
		}
	}

	if len(r.Answers) != len(r.Questions) {
		return scoreerr.Newf(scoreerr.CodeValidation, false,
			"have %d answers for %d questions", len(r.Answers), len(r.Questions))
	}
	for i, a := range r.Answers {
		if a == nil || a.Size() == 0 {
			return scoreerr.Newf(scoreerr.CodeValidation, false,
				"question %d has no recorded answer", i+1)
		}
	}
	return nil
}

// totalDuration sums the estimated durations of whatever audio the request
// carries, in seconds.
func (r *Request) totalDuration() float64 {
	if r.Merged != nil {
		return r.Merged.EstimatedDuration(r.Answers).Seconds()
	}
	var total time.Duration
	for _, a := range r.Answers {
		total += a.EstimatedDuration()
	}
	return total.Seconds()
}

// AttemptOutcome classifies how one attempt ended.
type AttemptOutcome string

const (
	OutcomeSuccess          AttemptOutcome = "success"
	OutcomeRetryableFailure AttemptOutcome = "retryable-failure"
	OutcomeFatalFailure     AttemptOutcome = "fatal-failure"
)

// Attempt records one try at delivering a request. A request produces an
// ordered sequence of attempts, terminating on the first success or on
// exhausting retries.
type Attempt struct {
	Index   int
	Outcome AttemptOutcome
	Elapsed time.Duration
	Err     error
}

// Receipt is what Submit hands back: the ordered attempts, and on success
// the parsed result plus the redirect locator for the reviewing surface.
type Receipt struct {
	Attempts    []Attempt
	Result      *Result
	RedirectURL string
}
