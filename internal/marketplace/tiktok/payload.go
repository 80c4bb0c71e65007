package tiktok

import (
	"encoding/json"
	"fmt"
	"strings"
)

// LineItem is one purchased item embedded in a TikTok order payload.
type LineItem struct {
	ProductID    int64   `json:"product_id"`
	VendorID     int64   `json:"vendor_id"`
	Quantity     int     `json:"quantity"`
	Price        float64 `json:"price"`
	TotalPrice   float64 `json:"total_price"`
	TikTokItemID string  `json:"tiktok_item_id"`
}

// parseLineItems extracts the line_items array from a raw order payload.
// An empty payload is treated as {} (zero items, still mergeable); only
// malformed JSON is an error.
func parseLineItems(raw string) ([]LineItem, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var payload struct {
		LineItems []LineItem `json:"line_items"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("order payload parse: %w", err)
	}
	return payload.LineItems, nil
}

// mapReturnStatus maps the TikTok return vocabulary onto the canonical one.
// TikTok returns are auto-approved; only completed returns land as processed.
func mapReturnStatus(external string) string {
	if external == "completed" {
		return "processed"
	}
	return "approved"
}

// defaultReturnReason is stored when the external return carries no reason.
const defaultReturnReason = "TikTok return request"

// returnAudit is the return_data blob written to the canonical return row:
// the external identifiers plus the untouched original payload.
type returnAudit struct {
	TikTokReturnID string `json:"tiktok_return_id"`
	TikTokOrderID  string `json:"tiktok_order_id"`
	OriginalData   string `json:"original_data"`
}

func buildReturnAudit(returnID, orderID, original string) ([]byte, error) {
	return json.Marshal(returnAudit{
		TikTokReturnID: returnID,
		TikTokOrderID:  orderID,
		OriginalData:   original,
	})
}
