package gauge

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/walshy828/oil-analysis/internal/ingest"
	gaugeapi "github.com/walshy828/oil-analysis/pkg/gauge"
)

// MakeMessageHandler returns a function that handles incoming WebSocket
// messages by parsing level pushes and routing them through ingestion,
// which classifies each reading before storing it.
func MakeMessageHandler(logger *zap.Logger, ing *ingest.Service, locationByTank map[string]uint) func(msg []byte) {
	return func(msg []byte) {
		// Extract topic string for early filtering
		var meta struct {
			Topic string `json:"topic"`
		}
		if err := json.Unmarshal(msg, &meta); err != nil {
			logger.Warn("failed to extract topic", zap.Error(err))
			return
		}
		if !isLevelTopic(meta.Topic) {
			return // Ignore non-level messages (e.g., subscription responses)
		}

		var parsed gaugeapi.LevelMessage
		if err := json.Unmarshal(msg, &parsed); err != nil {
			logger.Warn("failed to parse level payload", zap.Error(err))
			return
		}

		tankID := extractTankFromTopic(parsed.Topic) // e.g., "level.NS-1003" -> "NS-1003"
		locationID, ok := locationByTank[tankID]
		if !ok {
			logger.Warn("level push for unknown tank", zap.String("tank_id", tankID))
			return
		}

		for _, d := range parsed.Data {
			gallons, err := strconv.ParseFloat(d.Gallons, 64)
			if err != nil {
				logger.Warn("failed to parse gallons", zap.String("tank_id", tankID), zap.Error(err))
				continue
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_, err = ing.AddReading(ctx, locationID, gallons, time.UnixMilli(d.TS).UTC())
			cancel()
			if err != nil {
				logger.Warn("failed to store reading",
					zap.String("tank_id", tankID), zap.Error(err))
			}
		}
	}
}

// isLevelTopic returns true if the topic string indicates a level stream.
func isLevelTopic(topic string) bool {
	return strings.HasPrefix(topic, "level.")
}

// extractTankFromTopic parses the tank ID from a topic like "level.NS-1003".
func extractTankFromTopic(topic string) string {
	parts := strings.SplitN(topic, ".", 2)
	if len(parts) == 2 {
		return parts[1]
	}
	return ""
}
