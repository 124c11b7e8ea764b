package dto

// RegisterRequest mirrors the backend's registration payload.
type RegisterRequest struct {
	Username     string `json:"username"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	Role         string `json:"role"`
	Phone        string `json:"phone,omitempty"`
	Address      string `json:"address,omitempty"`
	ProfilePhoto string `json:"profile_photo,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is what the backend returns on a successful login.
type LoginResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
	Role    string `json:"role"`
}
