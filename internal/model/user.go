package model

import "time"

type User struct {
	ID           int
	Email        string
	PasswordHash string
	Active       bool
	CreatedAt    time.Time
}
