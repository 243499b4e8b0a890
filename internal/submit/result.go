package submit

import (
	"encoding/json"
	"net/url"

	"github.com/Mallarb20000/ScorespokenC-sub001/internal/scoreerr"
)

// Criterion is one band-score dimension of the assessment.
type Criterion struct {
	Score        float64  `json:"score"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
}

// Result is the scoring collaborator's success response body.
type Result struct {
	Transcript            string   `json:"transcript"`
	IndividualTranscripts []string `json:"individual_transcripts,omitempty"`
	Score                 float64  `json:"score"`
	MergedAudioURL        string   `json:"merged_audio_url,omitempty"`
	IndividualAudioURLs   []string `json:"individual_audio_urls,omitempty"`

	FluencyCoherence  Criterion `json:"fluency_coherence"`
	LexicalResource   Criterion `json:"lexical_resource"`
	GrammaticalRange  Criterion `json:"grammatical_range"`
	Pronunciation     Criterion `json:"pronunciation"`
	OverallAssessment string    `json:"overall_assessment"`
}

// parseResult decodes a 2xx response body. A body that is not the expected
// shape is a PROTOCOL_ERROR: the submission went through, so retrying it
// would double-submit, making this non-retryable.
func parseResult(body []byte) (*Result, error) {
	var result Result
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, scoreerr.Wrap(scoreerr.CodeProtocol,
			"malformed success response", false, err)
	}
	if result.Transcript == "" && result.Score == 0 && result.OverallAssessment == "" {
		return nil, scoreerr.New(scoreerr.CodeProtocol,
			"success response missing transcript and score", false)
	}
	return &result, nil
}

// RedirectURL builds the deterministic result locator: the result and the
// original questions URL-encoded as JSON query parameters, so a reviewing
// surface can reconstruct state without another server round trip.
func RedirectURL(base string, result *Result, questions []string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", scoreerr.Wrap(scoreerr.CodeValidation,
			"invalid redirect base", false, err)
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return "", scoreerr.Wrap(scoreerr.CodeProtocol,
			"failed to encode result", false, err)
	}
	questionsJSON, err := json.Marshal(questions)
	if err != nil {
		return "", scoreerr.Wrap(scoreerr.CodeProtocol,
			"failed to encode questions", false, err)
	}

	values := url.Values{}
	values.Set("result", string(resultJSON))
	values.Set("questions", string(questionsJSON))
	u.RawQuery = values.Encode()
	return u.String(), nil
}

// decodeRedirect reverses RedirectURL, reconstructing the result and
// question list from a locator.
func decodeRedirect(locator string) (*Result, []string, error) {
	u, err := url.Parse(locator)
	if err != nil {
		return nil, nil, scoreerr.Wrap(scoreerr.CodeProtocol,
			"invalid result locator", false, err)
	}

	var result Result
	if err := json.Unmarshal([]byte(u.Query().Get("result")), &result); err != nil {
		return nil, nil, scoreerr.Wrap(scoreerr.CodeProtocol,
			"locator result is not valid JSON", false, err)
	}
	var questions []string
	if err := json.Unmarshal([]byte(u.Query().Get("questions")), &questions); err != nil {
		return nil, nil, scoreerr.Wrap(scoreerr.CodeProtocol,
			"locator questions are not valid JSON", false, err)
	}
	return &result, questions, nil
}
