package dto

// ErrorResponse is the body of every failed API request.
type ErrorResponse struct {
	Detail string `json:"detail"`
}
