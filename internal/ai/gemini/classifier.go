package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/licita-radar/internal/ai"
	"github.com/spigell/licita-radar/internal/utils"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
}

// PromptOverrides are user supplied hints rendered into the system prompt.
type PromptOverrides struct {
	ExtraCriteria    string `mapstructure:"extra-criteria"`
	Exclusions       string `mapstructure:"exclusions"`
	UserInstructions string `mapstructure:"user-instructions"`
}

// Classifier asks Gemini whether a procurement subject fits the company sectors.
type Classifier struct {
	generator     contentGenerator
	minConfidence float64
	logger        *zap.Logger
	maxLogLen     int
	overrides     PromptOverrides
}

//go:embed prompt.md
var promptTemplate string

const (
	defaultMaxLogLength     = 200
	maxUserInstructionRunes = 500
	maxOverrideRunes        = 200
)

// NewClassifier builds a classifier. Answers whose confidence is below
// minConfidence are reported as inconclusive.
func NewClassifier(generator contentGenerator, minConfidence float64, maxLogLength int, logger *zap.Logger) *Classifier {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Classifier{
		generator:     generator,
		minConfidence: minConfidence,
		logger:        logger,
		maxLogLen:     maxLogLength,
	}
}

func (c *Classifier) SetPromptOverrides(o PromptOverrides) {
	c.overrides = o
}

// Classify implements ai.Classifier.
func (c *Classifier) Classify(ctx context.Context, subject string, sectors []string) (*ai.Assessment, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, errors.New("subject is required")
	}
	if len(sectors) == 0 {
		return nil, errors.New("at least one sector is required")
	}

	system := c.buildPrompt(sectors)

	payload, err := json.Marshal(map[string]string{"subject": subject})
	if err != nil {
		return nil, fmt.Errorf("marshal classification payload: %w", err)
	}
	message := string(payload)

	c.logger.Debug("gemini classification request",
		zap.Int("prompt_length", utf8.RuneCountInString(system)),
		zap.String("subject_preview", utils.TruncateForLog(subject, c.maxLogLen)),
	)

	raw, err := c.generator.GenerateContent(ctx, system, message)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("gemini classification response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, c.maxLogLen)),
	)

	assessment, err := parseResponse(raw)
	if err != nil {
		return nil, err
	}

	if c.minConfidence > 0 && assessment.Verdict != ai.Inconclusive && assessment.Confidence < c.minConfidence {
		c.logger.Debug("set verdict to inconclusive by confidence threshold",
			zap.String("verdict", assessment.Verdict.String()),
			zap.Float64("confidence", assessment.Confidence),
			zap.Float64("threshold", c.minConfidence),
		)
		assessment.Verdict = ai.Inconclusive
	}

	assessment.Raw = raw
	return assessment, nil
}

func (c *Classifier) buildPrompt(sectors []string) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Sectors:\n{{SECTORS}}\n\nAnswer with JSON {\"relevant\": bool|null, \"confidence\": number, \"reason\": string}."
	}

	lines := make([]string, 0, len(sectors))
	for _, s := range sectors {
		if s = sanitizeLine(s, maxOverrideRunes); s != "" {
			lines = append(lines, "- "+s)
		}
	}

	r := strings.NewReplacer(
		"{{SECTORS}}", strings.Join(lines, "\n"),
		"{{EXTRA_CRITERIA}}", orNone(sanitizeLine(c.overrides.ExtraCriteria, maxOverrideRunes)),
		"{{EXCLUSIONS}}", orNone(sanitizeLine(c.overrides.Exclusions, maxOverrideRunes)),
		"{{USER_INSTRUCTIONS}}", instructionsBlock(c.overrides.UserInstructions),
	)
	return r.Replace(template)
}

// sanitizeLine flattens s into one line, neutralizes square brackets so user
// text cannot open a prompt section, and truncates it to limit runes.
func sanitizeLine(s string, limit int) string {
	s = neutralizeBrackets(s)
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) > limit {
		s = string([]rune(s)[:limit])
	}
	return s
}

func instructionsBlock(s string) string {
	s = strings.TrimSpace(neutralizeBrackets(s))
	if utf8.RuneCountInString(s) > maxUserInstructionRunes {
		s = string([]rune(s)[:maxUserInstructionRunes])
	}

	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, "  - "+line)
		}
	}
	if len(lines) == 0 {
		return "  - none"
	}
	return strings.Join(lines, "\n")
}

func neutralizeBrackets(s string) string {
	return strings.NewReplacer("[", "(", "]", ")").Replace(s)
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func parseResponse(raw string) (*ai.Assessment, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	confidence := coerceFloat(data["confidence"])
	if math.IsNaN(confidence) {
		confidence = 0
	}

	return &ai.Assessment{
		Verdict:    coerceVerdict(data["relevant"]),
		Confidence: confidence,
		Reason:     coerceString(data["reason"]),
	}, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceVerdict(v any) ai.Verdict {
	switch val := v.(type) {
	case bool:
		if val {
			return ai.Match
		}
		return ai.NoMatch
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true", "yes", "sim":
			return ai.Match
		case "false", "no", "nao", "não":
			return ai.NoMatch
		}
	}
	return ai.Inconclusive
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}
