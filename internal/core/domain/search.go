package domain

// Distance is a vector similarity metric understood by the vector store
type Distance string

const (
	DistanceCosine Distance = "Cosine"
	DistanceDot    Distance = "Dot"
	DistanceEuclid Distance = "Euclid"
)

// Point payload keys
const (
	PayloadDocumentID     = "document_id"
	PayloadChunkIndex     = "chunk_index"
	PayloadText           = "text"
	PayloadFilename       = "filename"
	PayloadFileType       = "file_type"
	PayloadEmbeddingModel = "embedding_model"
)

// Point is one stored vector with its chunk payload
type Point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// ChunkPayload builds the payload stored alongside a chunk vector
func ChunkPayload(doc *Document, chunk Chunk, embeddingModel string) map[string]any {
	return map[string]any{
		PayloadDocumentID:     doc.ID,
		PayloadChunkIndex:     chunk.Index,
		PayloadText:           chunk.Text,
		PayloadFilename:       doc.Filename,
		PayloadFileType:       doc.FileType,
		PayloadEmbeddingModel: embeddingModel,
	}
}

// ScoredPoint is a raw nearest-neighbour hit from the vector store
type ScoredPoint struct {
	ID      string
	Score   float32
	Payload map[string]any
}

// PayloadString reads a string payload field, returning "" when absent
func (p ScoredPoint) PayloadString(key string) string {
	return payloadString(p.Payload, key)
}

func payloadString(payload map[string]any, key string) string {
	if payload == nil {
		return ""
	}
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}

// Search limits
const (
	DefaultSearchLimit = 10
	MaxSearchLimit     = 100
)

// SearchRequest is a free-text query against one index
type SearchRequest struct {
	IndexName  string     `json:"-"`
	Query      string     `json:"query" example:"vacation policy"`
	Limit      int        `json:"limit" example:"10"`
	Connection Connection `json:"-"`
}

// SearchHit is a projected search result
type SearchHit struct {
	ID         string  `json:"id"`
	Score      float32 `json:"score"`
	Text       string  `json:"text"`
	Filename   string  `json:"filename"`
	DocumentID string  `json:"document_id"`
}

// SearchResponse wraps ranked hits, highest score first
type SearchResponse struct {
	Results []SearchHit `json:"results"`
}

// HitFromPoint projects a scored point into a search hit
func HitFromPoint(p ScoredPoint) SearchHit {
	return SearchHit{
		ID:         p.ID,
		Score:      p.Score,
		Text:       p.PayloadString(PayloadText),
		Filename:   p.PayloadString(PayloadFilename),
		DocumentID: p.PayloadString(PayloadDocumentID),
	}
}
