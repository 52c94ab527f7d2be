package types

// LoginRequest accepts a username or, with the email backend, an email address.
type LoginRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse carries a session token.
type TokenResponse struct {
	Token   string `json:"token"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse is the body of every failed request. Fields is set for
// validation failures and maps field names to messages.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}
