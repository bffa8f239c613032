package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"

	"github.com/FranckBG1/agentic-ia-agent/internal/genai"
	"github.com/FranckBG1/agentic-ia-agent/internal/models"
)

// Extraction must be near-deterministic, so it overrides the sampling
// temperature; question generation runs at the client's default temperature
// and can vary its phrasing.
const extractionTemperature = 0.1

const extractionSystemPrompt = `Tu es un assistant d'extraction d'informations psychologiques.
À partir du message de l'utilisateur, extrais les champs suivants au format JSON strict :
{"emotion": "", "causes": "", "duration": "", "symptomes": "", "intensite": ""}
- emotion : l'émotion dominante exprimée (stress, tristesse, anxiété, colère...)
- causes : la cause ou le déclencheur évoqué
- duration : depuis combien de temps la personne ressent cela
- symptomes : les symptômes physiques ou psychiques mentionnés
- intensite : l'intensité exprimée, sur 10 si possible
Laisse une chaîne vide pour tout champ absent du message. Réponds UNIQUEMENT avec le JSON.`

// fallbackQuestions are used verbatim when the LLM cannot generate a
// contextual follow-up question.
var fallbackQuestions = map[models.ParamKey]string{
	models.ParamEmotion:   "Quelle émotion ressentez-vous le plus en ce moment ?",
	models.ParamCauses:    "Qu'est-ce qui, selon vous, a déclenché cet état ?",
	models.ParamDuration:  "Depuis combien de temps ressentez-vous cela ?",
	models.ParamSymptoms:  "Avez-vous remarqué des symptômes particuliers (sommeil, appétit, fatigue...) ?",
	models.ParamIntensity: "Sur une échelle de 1 à 10, à quel point est-ce difficile pour vous ?",
}

// frenchParamLabels name each parameter in user-facing question prompts.
var frenchParamLabels = map[models.ParamKey]string{
	models.ParamEmotion:   "l'émotion ressentie",
	models.ParamCauses:    "la cause de cet état",
	models.ParamDuration:  "la durée depuis laquelle cela dure",
	models.ParamSymptoms:  "les symptômes ressentis",
	models.ParamIntensity: "l'intensité sur 10",
}

// CollectionResult is the outcome of one collection turn.
type CollectionResult struct {
	Params         models.ParameterSet
	IsComplete     bool
	CompletionRate float64
	Missing        []models.ParamKey
	NextQuestion   string
}

// ParameterCollector extracts the five required parameters from free-form
// messages and asks for whatever is still missing. A nil client disables
// extraction and falls back to canned questions.
type ParameterCollector struct {
	client genai.ClientInterface
}

// NewParameterCollector returns a collector backed by the given LLM client.
func NewParameterCollector(client genai.ClientInterface) *ParameterCollector {
	return &ParameterCollector{client: client}
}

// MergeParams merges extracted values into current and returns a new set.
// A non-empty extracted value always wins; empty values never overwrite.
// Neither input is mutated.
func MergeParams(current, extracted models.ParameterSet) models.ParameterSet {
	merged := current.Clone()
	for _, key := range models.RequiredParams {
		if v := strings.TrimSpace(extracted[key]); v != "" {
			merged[key] = v
		}
	}
	return merged
}

// Collect extracts parameters from userText, merges them into current and
// returns the updated snapshot plus the next question when incomplete.
func (c *ParameterCollector) Collect(ctx context.Context, userText string, current models.ParameterSet) CollectionResult {
	extracted := c.extractParams(ctx, userText)
	merged := MergeParams(current, extracted)

	result := CollectionResult{
		Params:         merged,
		IsComplete:     merged.IsComplete(),
		CompletionRate: merged.CompletionRate(),
		Missing:        merged.Missing(),
	}
	if !result.IsComplete {
		result.NextQuestion = c.questionFor(ctx, result.Missing[0], merged)
	}
	return result
}

// extractParams asks the LLM for a strict-JSON extraction of the five fields.
// Any failure degrades to an empty extraction; collection continues with
// fallback questions.
func (c *ParameterCollector) extractParams(ctx context.Context, userText string) models.ParameterSet {
	if c.client == nil {
		return models.ParameterSet{}
	}

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(extractionSystemPrompt),
		openai.UserMessage(userText),
	}
	raw, err := c.client.GenerateWithTemperature(ctx, messages, extractionTemperature)
	if err != nil {
		slog.Warn("ParameterCollector.extractParams: LLM call failed, skipping extraction", "error", err)
		return models.ParameterSet{}
	}

	var fields map[string]string
	if err := json.Unmarshal([]byte(genai.CleanJSONResponse(raw)), &fields); err != nil {
		slog.Warn("ParameterCollector.extractParams: invalid JSON from LLM, skipping extraction", "error", err)
		return models.ParameterSet{}
	}

	extracted := models.ParameterSet{}
	for _, key := range models.RequiredParams {
		if v := strings.TrimSpace(fields[string(key)]); v != "" {
			extracted[key] = v
		}
	}
	return extracted
}

// questionFor generates a short empathetic question for the first missing
// parameter, falling back to a canned question on any failure.
func (c *ParameterCollector) questionFor(ctx context.Context, missing models.ParamKey, collected models.ParameterSet) string {
	fallback := fallbackQuestions[missing]
	if c.client == nil {
		return fallback
	}

	var known []string
	for _, key := range models.RequiredParams {
		if v := collected[key]; v != "" {
			known = append(known, fmt.Sprintf("%s: %s", key, v))
		}
	}
	prompt := fmt.Sprintf(
		"Tu es un assistant de soutien psychologique bienveillant. "+
			"Informations déjà recueillies : %s. "+
			"Pose UNE question courte, chaleureuse et naturelle en français pour connaître %s. "+
			"Ne repose pas de question sur ce qui est déjà connu.",
		strings.Join(known, "; "), frenchParamLabels[missing])

	question, err := c.client.GenerateWithMessages(ctx,
		[]openai.ChatCompletionMessageParamUnion{openai.SystemMessage(prompt)})
	if err != nil || strings.TrimSpace(question) == "" {
		slog.Warn("ParameterCollector.questionFor: LLM call failed, using fallback question", "param", missing, "error", err)
		return fallback
	}
	return strings.TrimSpace(question)
}
