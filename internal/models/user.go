package models

import "time"

// User mirrors the identity subsystem's users table. Only the columns this
// service reads are mapped; rows are created and removed by that subsystem.
type User struct {
	ID        string    `json:"id" gorm:"primaryKey;size:191"`
	Username  string    `json:"username" gorm:"size:256"`
	Email     string    `json:"email" gorm:"size:256"`
	CreatedAt time.Time `json:"created_at"`

	TodoItems []TodoItem `json:"todo_items,omitempty" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

func (User) TableName() string {
	return "users"
}

// DisplayName is what views show as the item's creator.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.Username != "" {
		return u.Username
	}
	if u.Email != "" {
		return u.Email
	}
	return u.ID
}
