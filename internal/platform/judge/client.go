package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"contest_arena/internal/platform/metrics"
)

// Judge0 status IDs we care about. Anything in the 7..12 range is a runtime
// error variant (SIGSEGV, SIGFPE, NZEC, ...).
const (
	StatusAccepted          = 3
	StatusWrongAnswer       = 4
	StatusTimeLimitExceeded = 5
	StatusCompilationError  = 6
	StatusRuntimeErrorFirst = 7
	StatusRuntimeErrorLast  = 12
)

// ExecutionResult is the judge's answer for a single testcase run.
type ExecutionResult struct {
	StatusID    int
	StatusDesc  string
	Stdout      string
	Stderr      string
	CompileOut  string
	TimeSeconds float64
	MemoryKb    int
}

// Client talks to a Judge0-compatible execution service. Submissions are sent
// with wait=true so the verdict comes back in the HTTP response; there is no
// callback round-trip per testcase.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type executeRequest struct {
	SourceCode     string `json:"source_code"`
	LanguageID     string `json:"language_id"`
	Stdin          string `json:"stdin"`
	ExpectedOutput string `json:"expected_output"`
}

type executeResponse struct {
	Stdout        *string  `json:"stdout"`
	Stderr        *string  `json:"stderr"`
	CompileOutput *string  `json:"compile_output"`
	Time          *string  `json:"time"`
	Memory        *float64 `json:"memory"`
	Status        struct {
		ID          int    `json:"id"`
		Description string `json:"description"`
	} `json:"status"`
}

// Execute runs source against one testcase. A returned error means the judge
// could not be reached or answered garbage; it does NOT mean a wrong answer.
func (c *Client) Execute(ctx context.Context, sourceCode, languageID, stdin, expectedStdout string) (*ExecutionResult, error) {
	metrics.JudgeRequests.Inc()

	body, err := json.Marshal(executeRequest{
		SourceCode:     sourceCode,
		LanguageID:     languageID,
		Stdin:          stdin,
		ExpectedOutput: expectedStdout,
	})
	if err != nil {
		return nil, fmt.Errorf("judge: marshal request: %w", err)
	}

	url := c.baseURL + "/submissions?base64_encoded=false&wait=true"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("judge: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.JudgeFailures.Inc()
		return nil, fmt.Errorf("judge: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		metrics.JudgeFailures.Inc()
		return nil, fmt.Errorf("judge: upstream returned %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		metrics.JudgeFailures.Inc()
		return nil, fmt.Errorf("judge: unexpected status %d", resp.StatusCode)
	}

	var payload executeResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		metrics.JudgeFailures.Inc()
		return nil, fmt.Errorf("judge: decode response: %w", err)
	}

	result := &ExecutionResult{
		StatusID:   payload.Status.ID,
		StatusDesc: payload.Status.Description,
	}
	if payload.Stdout != nil {
		result.Stdout = *payload.Stdout
	}
	if payload.Stderr != nil {
		result.Stderr = *payload.Stderr
	}
	if payload.CompileOutput != nil {
		result.CompileOut = *payload.CompileOutput
	}
	if payload.Time != nil {
		fmt.Sscanf(*payload.Time, "%f", &result.TimeSeconds)
	}
	if payload.Memory != nil {
		result.MemoryKb = int(*payload.Memory)
	}
	return result, nil
}
