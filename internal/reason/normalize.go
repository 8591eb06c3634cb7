package reason

import (
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// freeTextConfidence is the default confidence assigned when a response
// could only be interpreted as prose.
const freeTextConfidence = 0.3

// Normalize converts a raw backend response into an Outcome. Structured
// JSON responses are parsed field by field; anything else is wrapped as a
// low-confidence free-text interpretation. Responses are never discarded
// and parse failures never raise.
func Normalize(raw, observation, source string) Outcome {
	outcome := Outcome{
		Observation: observation,
		Raw:         raw,
		Source:      source,
	}

	block := extractJSONBlock(raw)
	if block != "" {
		parsed := gjson.Parse(block)
		if parsed.IsObject() && (parsed.Get("reasoning").Exists() || parsed.Get("decision").Exists()) {
			outcome.Reasoning = parsed.Get("reasoning").String()
			outcome.Verdict = parseVerdict(parsed.Get("decision").String())
			outcome.Action = parsed.Get("action").String()
			outcome.Confidence = clamp(parsed.Get("confidence").Float())

			if outcome.Reasoning == "" {
				outcome.Reasoning = strings.TrimSpace(raw)
			}
			return outcome
		}
		log.Debugf("Structured response from %s missing expected fields, using free-text interpretation", source)
	}

	// Free-text path: keep the whole text as reasoning, fail closed to wait.
	outcome.Reasoning = strings.TrimSpace(raw)
	outcome.Verdict = VerdictWait
	outcome.Confidence = freeTextConfidence
	return outcome
}

// extractJSONBlock returns the outermost {...} block in the text, tolerating
// leading and trailing noise such as markdown fences. Empty when no valid
// JSON object is present.
func extractJSONBlock(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end <= start {
		return ""
	}

	block := raw[start : end+1]
	if !gjson.Valid(block) {
		return ""
	}
	return block
}

// clamp bounds a confidence value to [0, 1].
func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
