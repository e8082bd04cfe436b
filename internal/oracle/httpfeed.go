package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// HTTPFeed queries an external data feed for the payout verdict.
// The feed is expected to answer GET {base}/verdict?product_id={id}
// with a JSON body {"payout": bool}.
type HTTPFeed struct {
	base   string
	client *http.Client
}

func NewHTTPFeed(base string, timeout time.Duration) *HTTPFeed {
	return &HTTPFeed{
		base:   base,
		client: &http.Client{Timeout: timeout},
	}
}

type feedVerdict struct {
	Payout bool `json:"payout"`
}

func (f *HTTPFeed) IsPayoutEvent(ctx context.Context, productID int64) (bool, error) {
	u := fmt.Sprintf("%s/verdict?product_id=%s", f.base, url.QueryEscape(fmt.Sprintf("%d", productID)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, fmt.Errorf("build feed request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("query oracle feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("oracle feed returned status %d", resp.StatusCode)
	}

	var v feedVerdict
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return false, fmt.Errorf("decode feed verdict: %w", err)
	}

	return v.Payout, nil
}
