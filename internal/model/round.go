package model

// RoundRecord is the immutable log entry for one round of one match. The
// column names match the analytics tables built from earlier runs.
type RoundRecord struct {
	Round int `parquet:"round" json:"round"`

	Agent1Name             string  `parquet:"agent1_name" json:"agent1_name"`
	Agent1Type             string  `parquet:"agent1_type" json:"agent1_type"`
	Agent1ContextMentioned bool    `parquet:"agent1_context_mentioned" json:"agent1_context_mentioned"`
	Agent1Model            string  `parquet:"agent1_model" json:"agent1_model"`
	Agent1Profile          string  `parquet:"agent1_profile" json:"agent1_profile"`
	Agent1Temperature      float64 `parquet:"agent1_temperature" json:"agent1_temperature"`
	Agent1Move             string  `parquet:"agent1_move" json:"agent1_move"`
	Agent1Fallback         bool    `parquet:"agent1_fallback" json:"agent1_fallback"`
	Agent1Score            int64   `parquet:"agent1_score" json:"agent1_score"`
	Agent1TotalScore       int64   `parquet:"agent1_total_score" json:"agent1_total_score"`

	Agent2Name             string  `parquet:"agent2_name" json:"agent2_name"`
	Agent2Type             string  `parquet:"agent2_type" json:"agent2_type"`
	Agent2ContextMentioned bool    `parquet:"agent2_context_mentioned" json:"agent2_context_mentioned"`
	Agent2Model            string  `parquet:"agent2_model" json:"agent2_model"`
	Agent2Profile          string  `parquet:"agent2_profile" json:"agent2_profile"`
	Agent2Temperature      float64 `parquet:"agent2_temperature" json:"agent2_temperature"`
	Agent2Move             string  `parquet:"agent2_move" json:"agent2_move"`
	Agent2Fallback         bool    `parquet:"agent2_fallback" json:"agent2_fallback"`
	Agent2Score            int64   `parquet:"agent2_score" json:"agent2_score"`
	Agent2TotalScore       int64   `parquet:"agent2_total_score" json:"agent2_total_score"`
}
