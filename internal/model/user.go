package model

import "time"

type User struct {
	ID        string
	CreatedAt time.Time
}
