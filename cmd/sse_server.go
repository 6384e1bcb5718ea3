package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"

	"entrevia/internal/utils/sse"
)

// startSSE serves the credit notification stream on its own port. The main
// API stays on chi; gin keeps this endpoint self-contained.
func startSSE() {
	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()
	r.GET("/sse/credits", CreditStream)

	sseAddr := fmt.Sprintf(":%s", viper.GetString("server.sseport"))

	go func() {
		if err := r.Run(sseAddr); err != nil {
			fmt.Printf("Failed to start SSE server: %v\n", err)
		}
	}()
}

// CreditStream pushes credit grants to the signed-in user as they are
// applied, so a purchase reflects in the UI without polling /me.
func CreditStream(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(400, gin.H{"detail": "user_id is required"})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
	c.Writer.Header().Set("Access-Control-Allow-Headers", "Cache-Control")

	ch := sse.RegisterChannel(userID)
	defer sse.UnregisterChannel(userID)

	initialMsg := map[string]interface{}{
		"type":      "connection_established",
		"userID":    userID,
		"timestamp": time.Now().Unix(),
	}
	if jsonData, err := json.Marshal(initialMsg); err == nil {
		fmt.Fprintf(c.Writer, "data: %s\n\n", string(jsonData))
		c.Writer.Flush()
	}

	clientGone := c.Request.Context().Done()

	// Heartbeat ticker to keep connection alive
	heartbeat := time.NewTicker(60 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-clientGone:
			return

		case <-heartbeat.C:
			heartbeatMsg := map[string]interface{}{
				"type":      "heartbeat",
				"timestamp": time.Now().Unix(),
			}
			if jsonData, err := json.Marshal(heartbeatMsg); err == nil {
				fmt.Fprintf(c.Writer, "data: %s\n\n", string(jsonData))
				c.Writer.Flush()
			}

		case notification, ok := <-ch:
			if !ok {
				return
			}
			if jsonData, err := json.Marshal(notification); err == nil {
				fmt.Fprintf(c.Writer, "data: %s\n\n", string(jsonData))
				c.Writer.Flush()
			}
		}
	}
}
