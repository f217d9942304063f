package store

import (
	"encoding/json"
	"time"

	"github.com/quantfold/marketcurator/internal/model"
)

// nullableTime maps the zero time to SQL NULL.
func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

// priceLevelJSON is the JSONB shape of one ladder rung.
type priceLevelJSON struct {
	Price int `json:"price"`
	Size  int `json:"size"`
}

// ladderToJSON converts a price ladder to JSONB bytes.
func ladderToJSON(levels []model.PriceLevel) []byte {
	result := make([]priceLevelJSON, len(levels))
	for i, level := range levels {
		result[i] = priceLevelJSON{Price: level.Price, Size: level.Size}
	}
	data, _ := json.Marshal(result)
	return data
}

// ladderFromJSON parses JSONB bytes back into a price ladder.
func ladderFromJSON(data []byte) []model.PriceLevel {
	if len(data) == 0 {
		return nil
	}
	var raw []priceLevelJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	levels := make([]model.PriceLevel, len(raw))
	for i, r := range raw {
		levels[i] = model.PriceLevel{Price: r.Price, Size: r.Size}
	}
	return levels
}

// tagsToJSON serializes a tag list to JSONB bytes.
func tagsToJSON(tags []string) []byte {
	if tags == nil {
		tags = []string{}
	}
	data, _ := json.Marshal(tags)
	return data
}

// metadataToJSON serializes a metadata map to JSONB bytes.
func metadataToJSON(meta map[string]string) []byte {
	if meta == nil {
		meta = map[string]string{}
	}
	data, _ := json.Marshal(meta)
	return data
}

// tagsFromJSON parses JSONB bytes back into a tag list.
func tagsFromJSON(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	var tags []string
	if err := json.Unmarshal(data, &tags); err != nil {
		return nil
	}
	return tags
}

// metadataFromJSON parses JSONB bytes back into a metadata map.
func metadataFromJSON(data []byte) map[string]string {
	if len(data) == 0 {
		return nil
	}
	var meta map[string]string
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil
	}
	return meta
}
