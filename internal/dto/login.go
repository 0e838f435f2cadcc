package dto

// MagicLinkRequest asks for a sign-in link. Context carries the product
// intent, e.g. "business_advertising".
type MagicLinkRequest struct {
	Email   string `json:"email"`
	Context string `json:"context,omitempty"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
