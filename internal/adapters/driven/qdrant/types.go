package qdrant

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// envelope is the common response wrapper: {"result": ..., "status": ..., "time": ...}
type envelope[T any] struct {
	Result T               `json:"result"`
	Status json.RawMessage `json:"status,omitempty"`
}

type collectionsResult struct {
	Collections []struct {
		Name string `json:"name"`
	} `json:"collections"`
}

type collectionInfo struct {
	Config struct {
		Params struct {
			Vectors json.RawMessage `json:"vectors"`
		} `json:"params"`
	} `json:"config"`
	PointsCount *int64 `json:"points_count,omitempty"`
}

// vectorSize reads the size of the unnamed default vector.
// Collections configured with named vectors report 0.
func (c collectionInfo) vectorSize() int {
	var params vectorParams
	if err := json.Unmarshal(c.Config.Params.Vectors, &params); err != nil {
		return 0
	}
	return params.Size
}

type vectorParams struct {
	Size     int    `json:"size"`
	Distance string `json:"distance"`
}

type createCollectionRequest struct {
	Vectors vectorParams `json:"vectors"`
}

type wirePoint struct {
	ID      pointID        `json:"id"`
	Vector  []float32      `json:"vector,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

type upsertRequest struct {
	Points []wirePoint `json:"points"`
}

type searchRequest struct {
	Vector      []float32 `json:"vector"`
	Limit       int       `json:"limit"`
	WithPayload bool      `json:"with_payload"`
}

type scoredPoint struct {
	ID      pointID        `json:"id"`
	Score   float32        `json:"score"`
	Payload map[string]any `json:"payload"`
}

type matchValue struct {
	Value string `json:"value"`
}

type fieldCondition struct {
	Key   string     `json:"key"`
	Match matchValue `json:"match"`
}

type filter struct {
	Must []fieldCondition `json:"must"`
}

type scrollRequest struct {
	Filter      *filter         `json:"filter,omitempty"`
	Limit       int             `json:"limit"`
	WithPayload bool            `json:"with_payload"`
	WithVector  bool            `json:"with_vector"`
	Offset      json.RawMessage `json:"offset,omitempty"`
}

type scrollResult struct {
	Points         []scoredPoint   `json:"points"`
	NextPageOffset json.RawMessage `json:"next_page_offset"`
}

// hasNext reports whether the scroll returned a continuation offset
func (r scrollResult) hasNext() bool {
	trimmed := bytes.TrimSpace(r.NextPageOffset)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

type deletePointsRequest struct {
	Points []pointID `json:"points"`
}

// pointID is a Qdrant point id, which is either an unsigned integer or a UUID string.
// It is carried as a string and marshalled back in its original form.
type pointID string

func (id pointID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseUint(string(id), 10, 64); err == nil {
		return []byte(strconv.FormatUint(n, 10)), nil
	}
	return json.Marshal(string(id))
}

func (id *pointID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = pointID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("unsupported point id %s", string(data))
	}
	*id = pointID(n.String())
	return nil
}

func toPointIDs(ids []string) []pointID {
	out := make([]pointID, len(ids))
	for i, id := range ids {
		out[i] = pointID(id)
	}
	return out
}
