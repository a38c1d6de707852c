package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/savegress/medroute/pkg/models"
)

// ErrAnalysisUnavailable is returned for any transport failure,
// non-success response or malformed body from the analysis service.
// Callers surface it as a dismissible message and offer retry or the
// manual body-region fallback.
var ErrAnalysisUnavailable = errors.New("analysis service unavailable")

// ErrIncompleteResult is returned when the analysis service answered
// but the result is missing its final status or top department. A
// partial result is an error, never a silent default.
var ErrIncompleteResult = errors.New("analysis result incomplete")

// Client talks to the external NLP analysis service. It performs
// exactly one attempt per call and holds no mutable state between
// calls, so repeated calls with the same input are idempotent.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ClientConfig holds client configuration
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

// NewClient creates a new analysis client
func NewClient(config *ClientConfig) *Client {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// AudioAnalysis pairs the transcription of an audio submission with the
// analysis of the transcribed text.
type AudioAnalysis struct {
	TranscribedText string
	Analysis        models.AnalysisResult
}

// wire shape of both analyze endpoints
type analyzeResponse struct {
	TranscribedText string `json:"transcribed_text"`
	Analysis        struct {
		FinalStatus string `json:"final_status"`
		DiseaseInfo struct {
			DiseasePrediction string `json:"disease_prediction"`
			TopDepartment     string `json:"top_department"`
		} `json:"disease_info"`
	} `json:"analysis"`
}

// AnalyzeText submits symptom text for analysis. The text must already
// be validated non-empty by the caller; the gateway only transports.
func (c *Client) AnalyzeText(ctx context.Context, text string) (models.AnalysisResult, error) {
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("failed to marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze-text/", bytes.NewReader(payload))
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return models.AnalysisResult{}, err
	}

	result, err := normalize(resp)
	if err != nil {
		return models.AnalysisResult{}, err
	}
	return result, nil
}

// AnalyzeAudio submits a captured recording as a multipart upload and
// returns the transcription alongside the analysis. The recording
// lifecycle (the fixed 5-second capture window) belongs to the caller.
func (c *Client) AnalyzeAudio(ctx context.Context, audio io.Reader, filename string) (AudioAnalysis, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return AudioAnalysis{}, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, audio); err != nil {
		return AudioAnalysis{}, fmt.Errorf("failed to copy audio: %w", err)
	}
	if err := writer.Close(); err != nil {
		return AudioAnalysis{}, fmt.Errorf("failed to finalize form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze-audio/", &buf)
	if err != nil {
		return AudioAnalysis{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.do(req)
	if err != nil {
		return AudioAnalysis{}, err
	}

	result, err := normalize(resp)
	if err != nil {
		return AudioAnalysis{}, err
	}

	return AudioAnalysis{
		TranscribedText: resp.TranscribedText,
		Analysis:        result,
	}, nil
}

func (c *Client) do(req *http.Request) (*analyzeResponse, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnalysisUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrAnalysisUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrAnalysisUnavailable, resp.StatusCode)
	}

	var parsed analyzeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", ErrAnalysisUnavailable, err)
	}

	return &parsed, nil
}

// normalize maps the wire shape to the domain model, enforcing the
// presence of final status and top department.
func normalize(resp *analyzeResponse) (models.AnalysisResult, error) {
	status := strings.TrimSpace(resp.Analysis.FinalStatus)
	department := strings.TrimSpace(resp.Analysis.DiseaseInfo.TopDepartment)

	if status == "" {
		return models.AnalysisResult{}, fmt.Errorf("%w: missing final_status", ErrIncompleteResult)
	}
	if department == "" {
		return models.AnalysisResult{}, fmt.Errorf("%w: missing top_department", ErrIncompleteResult)
	}

	final := models.StatusNonCritical
	if status == string(models.StatusCritical) {
		final = models.StatusCritical
	}

	return models.AnalysisResult{
		FinalStatus: final,
		DiseaseInfo: models.DiseaseInfo{
			DiseasePrediction: resp.Analysis.DiseaseInfo.DiseasePrediction,
			TopDepartment:     department,
		},
		TranscribedText: strings.TrimSpace(resp.TranscribedText),
	}, nil
}
