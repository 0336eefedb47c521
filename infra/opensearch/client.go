package opensearch

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/murat7074/elisishop/infra/config"
)

// Client wraps the OpenSearch client used for payment audit logs
type Client struct {
	client  *opensearch.Client
	config  *config.AppConfig
	enabled bool
}

// NewClient creates a new OpenSearch client
func NewClient(cfg *config.AppConfig) (*Client, error) {
	opensearchConfig := opensearch.Config{
		Addresses: []string{cfg.OpenSearchURL},
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, // For development/testing
			},
		},
		MaxRetries:    3,
		RetryOnStatus: []int{502, 503, 504, 429},
		RetryBackoff: func(i int) time.Duration {
			return time.Duration(i) * 100 * time.Millisecond
		},
	}

	if cfg.OpenSearchUser != "" && cfg.OpenSearchPass != "" {
		opensearchConfig.Username = cfg.OpenSearchUser
		opensearchConfig.Password = cfg.OpenSearchPass
	}

	client, err := opensearch.NewClient(opensearchConfig)
	if err != nil {
		return nil, err
	}

	osClient := &Client{
		client:  client,
		config:  cfg,
		enabled: true,
	}

	if err := osClient.setupIndices(); err != nil {
		log.Printf("Warning: Failed to setup OpenSearch indices: %v", err)
	}

	return osClient, nil
}

// GetClient returns the underlying OpenSearch client
func (c *Client) GetClient() *opensearch.Client {
	return c.client
}

// IsEnabled reports whether audit logging is active
func (c *Client) IsEnabled() bool {
	return c != nil && c.enabled
}

// GetIndexName returns the index name for a payment gateway's events
func (c *Client) GetIndexName(gateway string) string {
	if gateway == "" {
		gateway = "unknown"
	}
	return fmt.Sprintf("elisishop-payments-%s", gateway)
}

// setupIndices creates the payment event indices for known gateways
func (c *Client) setupIndices() error {
	gateways := []string{"paytr", "shopier", "iyzico", "stripe"}

	for _, gateway := range gateways {
		indexName := c.GetIndexName(gateway)

		exists, err := c.indexExists(indexName)
		if err != nil {
			log.Printf("Error checking index %s: %v", indexName, err)
			continue
		}

		if !exists {
			if err := c.createEventIndex(indexName); err != nil {
				log.Printf("Error creating index %s: %v", indexName, err)
				continue
			}
			log.Printf("Created OpenSearch index: %s", indexName)
		}
	}

	return nil
}

// indexExists checks if an index exists
func (c *Client) indexExists(indexName string) (bool, error) {
	req := opensearchapi.IndicesExistsRequest{
		Index: []string{indexName},
	}

	res, err := req.Do(context.Background(), c.client)
	if err != nil {
		return false, err
	}
	defer res.Body.Close()

	return res.StatusCode == 200, nil
}

// createEventIndex creates a new index for payment events with proper mapping
func (c *Client) createEventIndex(indexName string) error {
	mapping := `{
		"mappings": {
			"properties": {
				"timestamp":      { "type": "date", "format": "strict_date_optional_time||epoch_millis" },
				"gateway":        { "type": "keyword" },
				"event":          { "type": "keyword" },
				"merchant_oid":   { "type": "keyword" },
				"order_id":       { "type": "keyword" },
				"payment_id":     { "type": "keyword" },
				"status":         { "type": "keyword" },
				"amount":         { "type": "double" },
				"currency":       { "type": "keyword" },
				"customer_email": { "type": "keyword" },
				"error":          { "type": "text" },
				"fields":         { "type": "object", "enabled": true }
			}
		},
		"settings": {
			"number_of_shards":   1,
			"number_of_replicas": 0
		}
	}`

	req := opensearchapi.IndicesCreateRequest{
		Index: indexName,
		Body:  newStringReader(mapping),
	}

	res, err := req.Do(context.Background(), c.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("failed to create index: %s", res.String())
	}

	return nil
}
