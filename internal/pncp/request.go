package pncp

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/licita-radar/internal/utils"
)

const (
	contentType     = "application/json"
	contentEncoding = "gzip"
)

type pageResponse struct {
	Data             []map[string]any `json:"data"`
	TotalRegistros   int              `json:"totalRegistros"`
	TotalPaginas     int              `json:"totalPaginas"`
	NumeroPagina     int              `json:"numeroPagina"`
	PaginasRestantes int              `json:"paginasRestantes"`
	Empty            bool             `json:"empty"`
}

// GetItems makes GET requests to the PNCP API and returns the items of every
// page up to MaxPages.
func (c *Client) GetItems(ctx context.Context, endpoint string, q url.Values) ([]map[string]any, error) {
	maxPages := c.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}

	var items []map[string]any
	for page := 1; page <= maxPages; page++ {
		q.Set("pagina", strconv.Itoa(page))

		response, err := c.getPage(ctx, endpoint, q)
		if err != nil {
			return nil, err
		}
		if response == nil {
			break
		}

		items = append(items, response.Data...)

		if page == 1 {
			c.logger.Debug("got response from PNCP",
				zap.Int("pages", response.TotalPaginas),
				zap.Int("records", response.TotalRegistros),
			)
		}

		if response.Empty || response.PaginasRestantes <= 0 || page >= response.TotalPaginas {
			break
		}
		if page == maxPages {
			c.logger.Warn("page limit reached, remaining pages are skipped",
				zap.Int("max_pages", maxPages),
				zap.Int("remaining", response.PaginasRestantes),
			)
		}
	}

	return items, nil
}

// getPage fetches one page. A 204 answer means no records and yields nil.
func (c *Client) getPage(ctx context.Context, endpoint string, q url.Values) (*pageResponse, error) {
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req = c.setHeaders(req)
		req.URL.RawQuery = q.Encode()

		resp, err := c.request(req)
		if err != nil {
			return nil, err
		}

		if retryable(resp.StatusCode) && attempt < c.MaxRetries {
			resp.Body.Close()
			delay := time.Duration(attempt+1) * c.RetryDelay
			c.logger.Debug("retrying PNCP request", zap.String("status", resp.Status), zap.Duration("delay", delay))
			if err := utils.WaitFor(ctx, delay); err != nil {
				return nil, err
			}
			continue
		}

		return c.parsePageResponse(resp)
	}
}

func retryable(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func (c *Client) parsePageResponse(resp *http.Response) (*pageResponse, error) {
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent:
		return nil, nil
	default:
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}

	var body io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		body = gz
	}

	var response pageResponse
	if err := json.NewDecoder(body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode PNCP response: %w", err)
	}

	return &response, nil
}

func (c *Client) request(req *http.Request) (*http.Response, error) {
	c.logger.Debug("make request", zap.String("url", req.URL.String()))
	return c.HTTPClient.Do(req)
}

func (c *Client) setHeaders(req *http.Request) *http.Request {
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", contentType)
	req.Header.Set("Accept-Encoding", contentEncoding)

	return req
}
