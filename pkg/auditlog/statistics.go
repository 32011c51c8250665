package auditlog

import (
	"encoding/json"

	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/common/models"
	"github.com/google/uuid"
)

// computeStatistics aggregates a filtered entry set in memory. An empty set
// yields zero averages, never a division error.
func computeStatistics(records []models.InteractionRecord) models.InteractionStatistics {
	stats := models.InteractionStatistics{
		ByType:  make(map[string]int),
		ByModel: make(map[string]int),
	}

	sessions := make(map[uuid.UUID]struct{})
	var latencySum int64
	for _, record := range records {
		stats.Total++
		stats.ByType[record.InteractionType]++
		if record.ModelUsed != "" {
			stats.ByModel[record.ModelUsed]++
		}
		latencySum += record.LatencyMs
		stats.TotalTokens += sumTokens(record.TokenUsage)
		sessions[record.SessionID] = struct{}{}
	}

	if stats.Total > 0 {
		stats.AvgLatencyMs = float64(latencySum) / float64(stats.Total)
		stats.UniqueSessions = len(sessions)
	}

	return stats
}

// sumTokens reads the "total_tokens" entry when the provider reports one,
// otherwise it adds every numeric value in the map, descending into nested
// maps.
func sumTokens(usage map[string]interface{}) int64 {
	if total, ok := usage["total_tokens"]; ok {
		return tokenValue(total)
	}
	var total int64
	for _, value := range usage {
		total += tokenValue(value)
	}
	return total
}

func tokenValue(value interface{}) int64 {
	switch v := value.(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
		if f, err := v.Float64(); err == nil {
			return int64(f)
		}
		return 0
	case map[string]interface{}:
		return sumTokens(v)
	default:
		return 0
	}
}
