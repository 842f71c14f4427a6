// Package classifier implements the Risk Classifier (C2): a pluggable
// action scorer called by the Verification Engine only when the symbolic
// risk score meets the neural threshold. The embedded default scorer
// matches the action string against an ordered table of domain token
// patterns and maps the highest-weight match to a single 0-100 score.
package classifier

import (
	"log/slog"
	"regexp"
	"strings"
)

// Scorer is the contract the Verification Engine depends on. Any
// implementation satisfying it — rule ensemble, embedded inference, remote
// call — is valid.
type Scorer interface {
	Score(actionString string, context map[string]any) uint8
}

// Class is a coarse risk bucket the embedded scorer assigns before mapping
// to a weight.
type Class string

const (
	ClassSafe       Class = "safe"
	ClassSuspicious Class = "suspicious"
	ClassMalicious  Class = "malicious"
	ClassFinancial  Class = "financial"
	ClassDataAccess Class = "data_access"
	ClassSystemOp   Class = "system_op"
	ClassUnknown    Class = "unknown"
)

// classWeights gives the risk weight [0,100] for each class, per spec §4.2.
var classWeights = map[Class]uint8{
	ClassSafe:       10,
	ClassSuspicious: 60,
	ClassMalicious:  100,
	ClassFinancial:  40,
	ClassDataAccess: 30,
	ClassSystemOp:   50,
	ClassUnknown:    50,
}

// DefaultScore is used when the classifier cannot run (spec §4.3 failure
// semantics: a classifier failure yields neural_risk = default(50)).
const DefaultScore uint8 = 50

type signature struct {
	class   Class
	pattern *regexp.Regexp
}

// EmbeddedClassifier is the default, fixed-tokenizer heuristic scorer: it
// matches the action string against a hard-coded set of domain token
// patterns and returns the highest-weight matching class, falling back to
// Unknown.
type EmbeddedClassifier struct {
	signatures []signature
	logger     *slog.Logger
}

// NewEmbeddedClassifier builds the default classifier with its fixed
// pattern table.
func NewEmbeddedClassifier(logger *slog.Logger) *EmbeddedClassifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmbeddedClassifier{
		logger: logger.With("component", "classifier.EmbeddedClassifier"),
		signatures: []signature{
			{class: ClassMalicious, pattern: regexp.MustCompile(`(?i)\b(rm\s+-rf|drop\s+table|delete\s+from|exfiltrate|backdoor|ransomware)\b`)},
			{class: ClassFinancial, pattern: regexp.MustCompile(`(?i)\b(transfer_funds|wire_transfer|payment|withdraw|invoice)\b`)},
			{class: ClassDataAccess, pattern: regexp.MustCompile(`(?i)\b(read_file|download|export_data|query|select)\b`)},
			{class: ClassSystemOp, pattern: regexp.MustCompile(`(?i)\b(exec|spawn|shell|sudo|chmod|systemctl)\b`)},
			{class: ClassSuspicious, pattern: regexp.MustCompile(`(?i)\b(ignore\s+previous|override|bypass|jailbreak)\b`)},
			{class: ClassSafe, pattern: regexp.MustCompile(`(?i)\b(list|get|read_only|ping|health_check)\b`)},
		},
	}
}

// Score implements Scorer. It never panics and always returns a value in
// [0,100]; callers invoke it at most once per Action.
func (c *EmbeddedClassifier) Score(actionString string, context map[string]any) (score uint8) {
	defer func() {
		if recover() != nil {
			score = DefaultScore
		}
	}()

	best := ClassUnknown
	bestWeight := classWeights[ClassUnknown]
	matched := false

	lowered := strings.ToLower(actionString)
	for _, sig := range c.signatures {
		if sig.pattern.MatchString(lowered) {
			if w := classWeights[sig.class]; !matched || w > bestWeight {
				best = sig.class
				bestWeight = w
				matched = true
			}
		}
	}

	c.logger.Debug("classified action", "action", actionString, "class", best, "score", bestWeight)
	return bestWeight
}
