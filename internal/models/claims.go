package models

// Claims holds the authenticated rider identity extracted from a JWT.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Exp      int64  `json:"exp"`
}
