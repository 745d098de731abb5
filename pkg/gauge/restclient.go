package gauge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

type RESTClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewRESTClient(baseURL string, timeout time.Duration) *RESTClient {
	return &RESTClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *RESTClient) HTTPClient() *http.Client {
	return c.httpClient
}

// GetTanks fetches the tanks registered on the account.
func (c *RESTClient) GetTanks(ctx context.Context) ([]Tank, error) {
	endpoint := c.baseURL + "/v1/tanks"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("gauge api error: %s", body)
	}

	var rawResp GaugeResponse
	if err := json.NewDecoder(resp.Body).Decode(&rawResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	var result TankListResponse
	if err := json.Unmarshal(rawResp.Result, &result); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}

	return result.Tanks, nil
}

// GetLevelHistory fetches stored level samples for one tank in [start, end].
func (c *RESTClient) GetLevelHistory(ctx context.Context, tankID string, start, end time.Time) ([]LevelSample, error) {
	endpoint := fmt.Sprintf(
		"%s/v1/levels?tank_id=%s&start=%d&end=%d",
		c.baseURL,
		tankID,
		start.UnixMilli(),
		end.UnixMilli(),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("gauge api error: %s", body)
	}

	var rawResp GaugeResponse
	if err := json.NewDecoder(resp.Body).Decode(&rawResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	var result LevelsResponse
	if err := json.Unmarshal(rawResp.Result, &result); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}

	return ParseLevelList(tankID, result.List), nil
}

// ParseLevelList converts raw [timestamp_ms, gallons] rows to samples.
// Invalid rows are skipped.
func ParseLevelList(tankID string, raw [][]string) []LevelSample {
	var out []LevelSample

	for _, row := range raw {
		if len(row) < 2 {
			continue // skip incomplete row
		}

		ts, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			continue
		}
		gallons, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			continue
		}

		out = append(out, LevelSample{
			TankID:    tankID,
			Timestamp: ts,
			Gallons:   gallons,
		})
	}
	return out
}
