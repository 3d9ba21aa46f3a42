package models

// RemoteMockupRequest asks for a mockup built from two remote assets.
// Sources may be http(s) URLs, azblob://container/blob or file:///path references into the mockup library.
type RemoteMockupRequest struct {
	TemplateURL string `json:"template_url" binding:"required"`
	ArtworkURL  string `json:"artwork_url" binding:"required"`
	Filename    string `json:"filename,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// MockupResponse is the JSON form of a placement result
type MockupResponse struct {
	Method           string          `json:"method"`
	Rationale        string          `json:"rationale,omitempty"`
	PrimaryError     string          `json:"primary_error,omitempty"`
	Width            int             `json:"width"`
	Height           int             `json:"height"`
	DPI              int             `json:"dpi"`
	Region           PlacementRegion `json:"region"`
	ProcessingTimeMs int64           `json:"processing_time_ms"`
	Cached           bool            `json:"cached"`
	ContentType      string          `json:"content_type"`
	// Image is the encoded JPEG; encoding/json renders it as base64.
	Image []byte `json:"image,omitempty"`
}
