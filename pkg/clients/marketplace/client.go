package marketplace

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ListingRequest is the body accepted by the marketplace listing endpoint.
type ListingRequest struct {
	BatchID           string `json:"batchId"`
	CropID            string `json:"cropId"`
	FarmerID          string `json:"farmerId"`
	DistributorID     string `json:"distributorId"`
	Quantity          string `json:"quantity"`
	Price             string `json:"price"`
	FarmerProfit      string `json:"farmerProfit"`
	DistributorProfit string `json:"distributorProfit"`
	Status            string `json:"status"`
}

// ListingResponse echoes the stored listing.
type ListingResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Client talks to a remote marketplace over HTTP.
type Client struct {
	httpClient *resty.Client
}

// NewClient builds a marketplace client. apiKey may be empty.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	restyClient := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})
	if apiKey != "" {
		restyClient.SetHeader("X-API-Key", apiKey)
	}

	return &Client{httpClient: restyClient}
}

// PutListing creates or reactivates the listing of one crop. The endpoint is
// keyed by batch and crop, so repeated calls converge on one listing.
func (c *Client) PutListing(ctx context.Context, req ListingRequest) (*ListingResponse, error) {
	result := new(ListingResponse)
	apiErr := new(apiError)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(result).
		SetError(apiErr).
		Put(fmt.Sprintf("/listings/%s/%s", url.PathEscape(req.BatchID), url.PathEscape(req.CropID)))
	if err != nil {
		return nil, fmt.Errorf("put listing %s/%s: %w", req.BatchID, req.CropID, err)
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		message := apiErr.Message
		if message == "" {
			message = strings.TrimSpace(resp.String())
		}
		return nil, fmt.Errorf("marketplace api error: status=%d, message=%s", resp.StatusCode(), message)
	}

	return result, nil
}
