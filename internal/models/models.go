package models

import (
	"time"
)

type User struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"          json:"id"`
	Fullname  string    `gorm:"size:100;not null"                 json:"fullname"`
	Username  string    `gorm:"size:50;uniqueIndex;not null"      json:"username"`
	Email     string    `gorm:"size:100;uniqueIndex;not null"     json:"email"`
	Password  string    `gorm:"size:250;not null"                 json:"-"`
	CreatedAt time.Time `gorm:"not null"                          json:"created_at"`
	UpdatedAt time.Time `gorm:"not null"                          json:"updated_at"`
}

// Product is owned by exactly one User. Owner is only declared so that
// migrations emit the foreign key; it is never preloaded, owner names are
// resolved with an explicit lookup keyed by UserID.
type Product struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"  json:"id"`
	Category    string    `gorm:"size:50;not null"          json:"category"`
	Name        string    `gorm:"size:100;not null"         json:"name"`
	Description string    `gorm:"type:text"                 json:"description"`
	PriceRange  string    `gorm:"size:50;not null"          json:"price_range"`
	Comments    string    `gorm:"type:text"                 json:"comments"`
	Filename    string    `gorm:"size:255"                  json:"filename"`
	UserID      uint      `gorm:"index;not null"            json:"user_id"`
	Owner       *User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt   time.Time `gorm:"not null"                  json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null"                  json:"updated_at"`
}

// ProductFields is the mutable part of a Product.
type ProductFields struct {
	Category    string
	Name        string
	Description string
	PriceRange  string
	Comments    string
}

func (p *Product) Apply(f ProductFields) {
	p.Category = f.Category
	p.Name = f.Name
	p.Description = f.Description
	p.PriceRange = f.PriceRange
	p.Comments = f.Comments
}

type Session struct {
	ID        string    `gorm:"primaryKey;size:36"  json:"id"`
	UserID    uint      `gorm:"index;not null"      json:"user_id"`
	Username  string    `gorm:"size:50;not null"    json:"username"`
	ExpiresAt time.Time `gorm:"index;not null"      json:"expires_at"`
	CreatedAt time.Time `gorm:"not null"            json:"created_at"`
}

func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
