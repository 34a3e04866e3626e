package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"claimauditor/metrics"
	"claimauditor/models"
)

const (
	extractionMaxOutputTokens = 4096
)

// claimSchemaJSON is the JSON Schema a raw extraction record must satisfy
// before normalization; records that fail validation are discarded with a
// warning rather than failing the whole transcript.
const claimSchemaJSON = `{
	"type": "object",
	"required": ["speaker", "claim_text", "metric", "metric_kind", "stated_value", "unit", "comparison_period"],
	"properties": {
		"speaker": {"type": "string", "minLength": 1},
		"speaker_role": {"type": "string"},
		"claim_text": {"type": "string", "minLength": 1},
		"metric": {"type": "string", "minLength": 1},
		"metric_kind": {"type": "string"},
		"stated_value": {"type": "number"},
		"unit": {"type": "string"},
		"comparison_period": {"type": "string"},
		"is_gaap": {"type": "boolean"},
		"segment": {"type": ["string", "null"]},
		"confidence": {"type": "number", "minimum": 0, "maximum": 1},
		"context": {"type": "string"}
	}
}`

// extractionSystemPromptV1 declares the required schema and constraints to
// the language model, versioned so a change in extraction behavior is
// traceable to a prompt revision.
const extractionSystemPromptV1 = `You are a financial claims extraction system, version 1. Read an earnings-call transcript and extract every quantitative statement made by a management speaker (CEO, CFO, or other named executive) about the company's financial performance. Ignore statements by analysts or the operator.

For each claim return an object with:
- speaker: the speaker's name as it appears in the transcript
- speaker_role: their title if stated, else ""
- claim_text: the verbatim sentence containing the claim
- metric: the financial metric referenced, in the speaker's own words
- metric_kind: one of "absolute", "growth_rate", "margin", "ratio", "change", "per_share"
- stated_value: the numeric value as stated (no unit scaling applied beyond the unit field)
- unit: one of "usd", "usd_millions", "usd_billions", "percent", "basis_points", "ratio", "shares"
- comparison_period: one of "year_over_year", "quarter_over_quarter", "sequential", "full_year", "custom", "none"
- is_gaap: true unless the speaker explicitly flags the figure as non-GAAP or adjusted
- segment: the business segment name if the claim is scoped to one, else null
- confidence: your confidence in [0,1] that this claim was extracted and classified correctly
- context: one sentence of surrounding context

Return ONLY a JSON array of these objects, no other text.`

// rawClaimRecord is one extraction-model output record before normalization.
type rawClaimRecord struct {
	Speaker          string  `json:"speaker"`
	SpeakerRole      string  `json:"speaker_role"`
	ClaimText        string  `json:"claim_text"`
	Metric           string  `json:"metric"`
	MetricKind       string  `json:"metric_kind"`
	StatedValue      float64 `json:"stated_value"`
	Unit             string  `json:"unit"`
	ComparisonPeriod string  `json:"comparison_period"`
	IsGAAP           bool    `json:"is_gaap"`
	Segment          *string `json:"segment"`
	Confidence       float64 `json:"confidence"`
	Context          string  `json:"context"`
}

// ExtractionAdapter is the Extraction Adapter: a prompted, structured
// extraction call over transcript text, grounded on gemini.go's REST
// client and its ExtractNLPResult tolerant-JSON-parsing pattern,
// generalized from a single JSON object to a JSON array of claim drafts.
type ExtractionAdapter struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
	schema     *gojsonschema.Schema
}

// NewExtractionAdapter constructs an ExtractionAdapter, compiling the claim
// schema once up front.
func NewExtractionAdapter(apiKey, model string) (*ExtractionAdapter, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(claimSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to compile claim schema: %w", err)
	}
	return &ExtractionAdapter{
		APIKey:     apiKey,
		Model:      model,
		BaseURL:    "https://generativelanguage.googleapis.com/v1beta/models",
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
		schema:     schema,
	}, nil
}

type extractionRequest struct {
	Contents          []extractionContent         `json:"contents"`
	SystemInstruction *extractionContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *extractionGenerationConfig `json:"generationConfig,omitempty"`
}

type extractionContent struct {
	Parts []extractionPart `json:"parts"`
	Role  string           `json:"role,omitempty"`
}

type extractionPart struct {
	Text string `json:"text"`
}

type extractionGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type extractionResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ExtractionStats reports claim-draft counts by outcome for one transcript.
type ExtractionStats struct {
	Raw      int
	Invalid  int
	Deduped  int
	Accepted int
}

// Extract invokes the language model over transcriptText and returns
// validated, normalized, deduplicated Claim drafts (TranscriptID unset —
// the caller attaches it before persisting).
func (a *ExtractionAdapter) Extract(ctx context.Context, transcriptText, ticker string, year, quarter int) ([]models.Claim, ExtractionStats, error) {
	reqBody := extractionRequest{
		SystemInstruction: &extractionContent{Parts: []extractionPart{{Text: extractionSystemPromptV1}}},
		Contents: []extractionContent{{
			Role: "user",
			Parts: []extractionPart{{Text: fmt.Sprintf("Transcript for %s, %s:\n\n%s",
				ticker, models.QuarterLabel(year, quarter), transcriptText)}},
		}},
		GenerationConfig: &extractionGenerationConfig{Temperature: 0.0, MaxOutputTokens: extractionMaxOutputTokens},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, ExtractionStats{}, fmt.Errorf("failed to marshal extraction request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", a.BaseURL, a.Model, a.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, ExtractionStats{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return nil, ExtractionStats{}, fmt.Errorf("extraction request failed: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ExtractionStats{}, fmt.Errorf("failed to read extraction response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, ExtractionStats{}, fmt.Errorf("extraction API returned status %d: %s", resp.StatusCode, truncate(string(respBytes), 200))
	}

	var extractionResp extractionResponse
	if err := json.Unmarshal(respBytes, &extractionResp); err != nil {
		return nil, ExtractionStats{}, fmt.Errorf("failed to parse extraction response: %w", err)
	}
	if extractionResp.Error != nil {
		return nil, ExtractionStats{}, fmt.Errorf("extraction API error %d: %s", extractionResp.Error.Code, extractionResp.Error.Message)
	}
	if len(extractionResp.Candidates) == 0 || len(extractionResp.Candidates[0].Content.Parts) == 0 {
		return nil, ExtractionStats{}, fmt.Errorf("extraction model returned no content")
	}

	raw, err := extractJSONArray(extractionResp.Candidates[0].Content.Parts[0].Text)
	if err != nil {
		return nil, ExtractionStats{}, err
	}

	claims, stats := a.normalize(raw)
	return claims, stats, nil
}

// extractJSONArray parses a JSON array out of text, tolerant of a bare
// array, a markdown code-fenced array, or an array surrounded by prose —
// generalizing gemini.go's ExtractNLPResult (which handles a single JSON
// object) to arrays.
func extractJSONArray(text string) ([]rawClaimRecord, error) {
	var records []rawClaimRecord
	if err := json.Unmarshal([]byte(text), &records); err == nil {
		return records, nil
	}

	fenced := strings.TrimSpace(text)
	if idx := strings.Index(fenced, "```"); idx >= 0 {
		fenced = fenced[idx+3:]
		fenced = strings.TrimPrefix(fenced, "json")
		if end := strings.Index(fenced, "```"); end >= 0 {
			fenced = fenced[:end]
		}
		if err := json.Unmarshal([]byte(strings.TrimSpace(fenced)), &records); err == nil {
			return records, nil
		}
	}

	re := regexp.MustCompile(`(?s)\[.*\]`)
	match := re.FindString(text)
	if match == "" {
		return nil, fmt.Errorf("no JSON array found in extraction response: %s", truncate(text, 200))
	}
	if err := json.Unmarshal([]byte(match), &records); err != nil {
		return nil, fmt.Errorf("failed to parse extracted JSON array: %w", err)
	}
	return records, nil
}

// normalize runs the post-processing pipeline applied to every raw claim
// record: schema validation, metric-name normalization, enum coercion, and
// dedup by (metric, stated_value, comparison_period).
func (a *ExtractionAdapter) normalize(raw []rawClaimRecord) ([]models.Claim, ExtractionStats) {
	seen := map[string]bool{}
	claims := make([]models.Claim, 0, len(raw))
	stats := ExtractionStats{Raw: len(raw)}

	for _, r := range raw {
		encoded, err := json.Marshal(r)
		if err != nil {
			log.Printf("warning: failed to re-encode claim record for validation: %v", err)
			stats.Invalid++
			continue
		}
		result, err := a.schema.Validate(gojsonschema.NewBytesLoader(encoded))
		if err != nil || !result.Valid() {
			log.Printf("warning: discarding claim record failing schema validation: %v", result.Errors())
			stats.Invalid++
			continue
		}

		metricKind := models.MetricKind(r.MetricKind)
		unit := models.Unit(r.Unit)
		comparison := models.ComparisonPeriod(r.ComparisonPeriod)
		if !metricKind.Valid() || !unit.Valid() || !comparison.Valid() {
			log.Printf("warning: discarding claim record with invalid enum value: kind=%s unit=%s comparison=%s",
				r.MetricKind, r.Unit, r.ComparisonPeriod)
			stats.Invalid++
			continue
		}

		canonicalMetric := metrics.Normalize(r.Metric)
		dedupKey := fmt.Sprintf("%s|%v|%s", canonicalMetric, r.StatedValue, comparison)
		if seen[dedupKey] {
			stats.Deduped++
			continue
		}
		seen[dedupKey] = true

		claims = append(claims, models.Claim{
			Speaker:          r.Speaker,
			SpeakerRole:      r.SpeakerRole,
			ClaimText:        r.ClaimText,
			Metric:           canonicalMetric,
			MetricKind:       metricKind,
			StatedValue:      r.StatedValue,
			Unit:             unit,
			ComparisonPeriod: comparison,
			IsGAAP:           r.IsGAAP,
			Segment:          r.Segment,
			Confidence:       r.Confidence,
			Context:          r.Context,
		})
	}

	stats.Accepted = len(claims)
	return claims, stats
}
