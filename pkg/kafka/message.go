package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/models"
)

// IncomingMessage is a fetched Kafka message with parsed headers
type IncomingMessage struct {
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    int64
	Timestamp time.Time
	Topic     string

	Record *models.ScrapedRecord
}

// ParseScrapedRecord decodes the message body as a scraped listing record
func (m *IncomingMessage) ParseScrapedRecord() error {
	var record models.ScrapedRecord
	if err := json.Unmarshal(m.Value, &record); err != nil {
		return fmt.Errorf("failed to parse scraped record: %w", err)
	}
	if record.TenantID == "" && m.Headers["tenant_id"] != "" {
		record.TenantID = m.Headers["tenant_id"]
	}
	m.Record = &record
	return nil
}

// IsDelisting reports whether this message signals a listing going off-market
// rather than a fresh scrape.
func (m *IncomingMessage) IsDelisting() bool {
	return m.Headers["event_type"] == "listing.delisted"
}
