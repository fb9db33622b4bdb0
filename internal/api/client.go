package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"interview_room/native/internal/domain"
)

// Compile-time interface check.
var _ domain.ICEServerFetcher = (*Client)(nil)

type iceResponse struct {
	ICEServers []domain.ICEServer `json:"iceServers"`
}

// Insights is the analysis the server derived from a resume.
type Insights struct {
	CandidateName string   `json:"candidate_name"`
	JobRole       string   `json:"job_role"`
	FileName      string   `json:"file_name"`
	Skills        []string `json:"skills"`
	Strengths     []string `json:"strengths"`
	Weaknesses    []string `json:"weaknesses"`
	KeySentences  []string `json:"key_sentences"`
}

// Analysis is the response of the resume analysis endpoint.
type Analysis struct {
	Message  string   `json:"message"`
	FileName string   `json:"file_name"`
	Insights Insights `json:"insights"`
	Error    string   `json:"error"`
}

// Client talks to the interview server's HTTP collaborators.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates an API client for the server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// FetchICEServers retrieves STUN/TURN configuration.
func (c *Client) FetchICEServers(ctx context.Context) ([]domain.ICEServer, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/get_turn_credentials", nil)
	if err != nil {
		return nil, fmt.Errorf("create http request: %w", err)
	}

	respBody, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var ice iceResponse
	if err := json.Unmarshal(respBody, &ice); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return ice.ICEServers, nil
}

// AnalyzeResume uploads a PDF resume for room and job role.
func (c *Client) AnalyzeResume(ctx context.Context, path, room, jobRole string) (*Analysis, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open resume: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(path)))
	h.Set("Content-Type", "application/pdf")
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("read resume: %w", err)
	}
	if err := w.WriteField("room", domain.NormalizeRoom(room)); err != nil {
		return nil, fmt.Errorf("write room field: %w", err)
	}
	if err := w.WriteField("job_role", jobRole); err != nil {
		return nil, fmt.Errorf("write job_role field: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/analyze_resume", &body)
	if err != nil {
		return nil, fmt.Errorf("create http request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var analysis Analysis
	jsonErr := json.Unmarshal(respBody, &analysis)
	if analysis.Error != "" {
		return nil, fmt.Errorf("analyze resume: %s", analysis.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(respBody))
	}
	if jsonErr != nil {
		return nil, fmt.Errorf("unmarshal response: %w", jsonErr)
	}
	return &analysis, nil
}

// ReportURL is the address of the evaluation report for room.
func (c *Client) ReportURL(room string) string {
	return c.baseURL + "/api/generate_pdf?room=" + url.QueryEscape(domain.NormalizeRoom(room))
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}
