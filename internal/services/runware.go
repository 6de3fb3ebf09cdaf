package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	runwareBaseURL      = "https://api.runware.ai/v1"
	DefaultRunwareModel = "runware:101@1"
)

// RunwareService implements ImageService with the Runware image inference API.
type RunwareService struct {
	apiKey     string
	modelName  string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

type RunwareTask struct {
	TaskType       string  `json:"taskType"`
	TaskUUID       string  `json:"taskUUID"`
	PositivePrompt string  `json:"positivePrompt"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	Model          string  `json:"model"`
	Steps          int     `json:"steps"`
	CFGScale       float64 `json:"CFGScale"`
	OutputFormat   string  `json:"outputFormat"`
	OutputType     string  `json:"outputType"`
	NumberResults  int     `json:"numberResults"`
}

type RunwareResponse struct {
	Data []struct {
		TaskType string `json:"taskType"`
		TaskUUID string `json:"taskUUID"`
		ImageURL string `json:"imageURL"`
	} `json:"data"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

func NewRunwareService(apiKey, modelName string, logger *slog.Logger) *RunwareService {
	if modelName == "" {
		modelName = DefaultRunwareModel
	}
	return &RunwareService{
		apiKey:    apiKey,
		modelName: modelName,
		baseURL:   runwareBaseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger: logger,
	}
}

// GenerateImage submits one inference task and returns the hosted image URL.
func (r *RunwareService) GenerateImage(ctx context.Context, ireq ImageRequest) (string, error) {
	task := RunwareTask{
		TaskType:       "imageInference",
		TaskUUID:       uuid.New().String(),
		PositivePrompt: ireq.Prompt,
		Width:          ireq.Width,
		Height:         ireq.Height,
		Model:          r.modelName,
		Steps:          ireq.Steps,
		CFGScale:       ireq.GuidanceScale,
		OutputFormat:   ireq.OutputFormat,
		OutputType:     "URL",
		NumberResults:  1,
	}

	reqBody, err := json.Marshal([]RunwareTask{task})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL, bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &APIError{Service: "runware", StatusCode: resp.StatusCode, Body: string(body)}
	}

	var runwareResp RunwareResponse
	if err := json.Unmarshal(body, &runwareResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(runwareResp.Errors) > 0 {
		return "", fmt.Errorf("runware error %s: %s", runwareResp.Errors[0].Code, runwareResp.Errors[0].Message)
	}

	for _, d := range runwareResp.Data {
		if d.TaskUUID == task.TaskUUID && d.ImageURL != "" {
			r.logger.Debug("Runware image generated", "task_uuid", task.TaskUUID)
			return d.ImageURL, nil
		}
	}
	return "", fmt.Errorf("%w: no image for task %s", ErrMalformedResponse, task.TaskUUID)
}
