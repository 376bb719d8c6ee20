package ecb

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/beevik/etree"
	"github.com/sirupsen/logrus"

	"github.com/altbank/backoffice/internal/config"
)

// Rate is a euro foreign-exchange reference rate as published by the
// European Central Bank. Rates are informational only; the ledger
// itself stays single-currency.
type Rate struct {
	Currency string  `json:"currency"`
	Rate     float64 `json:"rate"`
}

// Client fetches the ECB daily reference-rate feed
type Client struct {
	url    string
	client *http.Client
	log    *logrus.Logger
}

// NewClient initializes a new ECB client
func NewClient(cfg *config.Config, log *logrus.Logger) *Client {
	return &Client{
		url: cfg.ECBURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
	}
}

// GetReferenceRates retrieves the current euro reference rates
func (c *Client) GetReferenceRates() ([]Rate, error) {
	req, err := http.NewRequest(http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	rates, err := parseRates(body)
	if err != nil {
		return nil, err
	}

	c.log.Infof("Retrieved %d euro reference rates from ECB", len(rates))
	return rates, nil
}

// parseRates extracts currency/rate pairs from the eurofxref XML feed
func parseRates(rawBody []byte) ([]Rate, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(rawBody); err != nil {
		return nil, fmt.Errorf("failed to parse XML: %w", err)
	}

	cubes := doc.FindElements("//Cube[@currency]")
	if len(cubes) == 0 {
		return nil, fmt.Errorf("no reference rates found in XML")
	}

	rates := make([]Rate, 0, len(cubes))
	for _, cube := range cubes {
		currency := cube.SelectAttrValue("currency", "")
		rateText := cube.SelectAttrValue("rate", "")
		rate, err := strconv.ParseFloat(rateText, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse rate for %s: %w", currency, err)
		}
		rates = append(rates, Rate{Currency: currency, Rate: rate})
	}
	return rates, nil
}
