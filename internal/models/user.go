package models

import (
	"time"
)

// User - учетная запись жителя или администратора.
// Ключом документа служит username.
type User struct {
	Username     string    `bson:"_id" json:"username"`
	Name         string    `bson:"name" json:"name"`
	Email        string    `bson:"email" json:"email"`
	Phone        string    `bson:"phone" json:"phone"`
	PasswordHash string    `bson:"password" json:"-"`
	IsAdmin      bool      `bson:"is_admin" json:"is_admin"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
}
