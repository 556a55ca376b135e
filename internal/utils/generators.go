package utils

import (
	"fmt"
	"time"
)

// GenerateOrderNumber returns a time-derived order number ("CMD-<unix ms>").
// It anchors every durable write of one commit attempt; a fresh number is
// drawn per attempt so a retried commit never collides with a failed one.
func GenerateOrderNumber() string {
	return fmt.Sprintf("CMD-%d", time.Now().UnixMilli())
}

// GenerateRedemptionCode derives a per-ticket code from the order number,
// the seat and a fine-grained timestamp so codes stay unique even if an
// order number were ever reused.
func GenerateRedemptionCode(orderNumber, seatID string) string {
	return fmt.Sprintf("%s-%s-%d", orderNumber, seatID, time.Now().UnixNano())
}
