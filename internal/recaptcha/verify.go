package recaptcha

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultEndpoint = "https://www.google.com/recaptcha/api/siteverify"

type VerifyResponse struct {
	Success     bool     `json:"success"`
	Score       float64  `json:"score"`
	Action      string   `json:"action"`
	ChallengeTS string   `json:"challenge_ts"`
	Hostname    string   `json:"hostname"`
	ErrorCodes  []string `json:"error-codes"`
}

// Verifier checks reCAPTCHA v3 tokens against a minimum score.
type Verifier struct {
	secretKey  string
	minScore   float64
	endpoint   string
	httpClient *http.Client
}

func NewVerifier(secretKey string, minScore float64) *Verifier {
	if minScore <= 0 {
		minScore = 0.5
	}
	return &Verifier{
		secretKey:  secretKey,
		minScore:   minScore,
		endpoint:   DefaultEndpoint,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// WithEndpoint points the verifier at another siteverify URL.
func (v *Verifier) WithEndpoint(endpoint string) *Verifier {
	v.endpoint = endpoint
	return v
}

func (v *Verifier) Verify(ctx context.Context, token string) (*VerifyResponse, error) {
	form := url.Values{
		"secret":   {v.secretKey},
		"response": {token},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result VerifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func (v *Verifier) IsValid(ctx context.Context, token string) (bool, float64, error) {
	if token == "" {
		return false, 0, fmt.Errorf("missing recaptcha token")
	}

	result, err := v.Verify(ctx, token)
	if err != nil {
		return false, 0, err
	}

	if !result.Success {
		return false, result.Score, fmt.Errorf("recaptcha verification failed: %v", result.ErrorCodes)
	}

	return result.Score >= v.minScore, result.Score, nil
}
