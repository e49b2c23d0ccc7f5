package auth

// RegisterInput represents the request body for signing up.
type RegisterInput struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Names    string `json:"names" validate:"max=120"`
}

// LoginInput represents the request body for user authentication.
type LoginInput struct {
	Identity string `json:"identity" validate:"required"`
	Password string `json:"password" validate:"required"`
}
