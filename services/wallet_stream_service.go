package services

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"pall-network-service/models"
)

// StreamWalletSSE streams the caller's wallet document over SSE.
//
// Contract: at-least-once delivery of the latest committed state after each
// write. Intermediate states between polls are not replayed, which matches
// how the client consumes the stream (it only renders the newest snapshot).
func (s *WalletService) StreamWalletSSE(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()

		var lastUpdatedAt time.Time

		// Initial keepalive (comment event)
		w.WriteString(":\n\n")
		w.Flush()

		for {
			select {
			case <-ticker.C:
				var wallet models.Wallet
				err := s.DB.
					Where("user_id = ?", userID).
					Where("updated_at > ?", lastUpdatedAt).
					First(&wallet).Error

				if errors.Is(err, gorm.ErrRecordNotFound) {
					continue // no committed change since the last event
				}
				if err != nil {
					log.Printf("[SSE] Wallet query error for user %s: %v", userID, err)
					continue
				}

				lastUpdatedAt = wallet.UpdatedAt

				payload, _ := json.Marshal(s.snapshot(&wallet, time.Now().UTC()))
				fmt.Fprintf(w, "event: wallet\ndata: %s\n\n", payload)

				if err := w.Flush(); err != nil {
					// Client disconnected
					return
				}

			case <-c.Context().Done():
				// Client closed connection
				return
			}
		}
	})

	return nil
}
