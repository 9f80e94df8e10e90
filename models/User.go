package models

import (
	"encoding/json"

	"gorm.io/gorm"
)

// User is a back-office operator. Owners themselves never log in; statements
// reach them by email.
type User struct {
	gorm.Model
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email" gorm:"uniqueIndex"`
	Password  string `json:"password"`
	Role      string `json:"role" gorm:"type:varchar(20);default:user;index"` // user, admin, super_admin
}

// MarshalJSON strips the password hash from every response shape.
func (u *User) MarshalJSON() ([]byte, error) {
	type Alias User
	aux := &struct {
		Password string `json:"password,omitempty"`
		*Alias
	}{
		Alias: (*Alias)(u),
	}
	aux.Password = ""
	return json.Marshal(aux)
}
