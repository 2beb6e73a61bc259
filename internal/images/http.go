package images

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/skyboj/obsidian-ai-blogger/internal/apperr"
)

// getJSON issues a GET and decodes a JSON body into out, mapping non-2xx
// statuses onto the error taxonomy.
func getJSON(ctx context.Context, client *http.Client, name, endpoint string, params url.Values, header http.Header, out any) error {
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", name, err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.KindUnknown, name+" request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		kind := apperr.FromStatus(apperr.DomainImage, resp.StatusCode)
		return apperr.Wrap(kind, fmt.Sprintf("%s: status %d", name, resp.StatusCode), fmt.Errorf("%s", body))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", name, err)
	}
	return nil
}
