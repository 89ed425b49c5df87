package model

import (
	"time"
)

type User struct {
	ID          string    `gorm:"primaryKey;size:64" json:"id"`
	Email       *string   `gorm:"size:100;uniqueIndex" json:"email,omitempty"`
	DisplayName string    `gorm:"size:100" json:"display_name"`
	CountryCode string    `gorm:"size:8;default:US" json:"country_code"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// ukSpellingCountries lists country codes that get UK spelling in
// generated scripts. Everything else defaults to US.
var ukSpellingCountries = map[string]bool{
	"GB": true,
	"UK": true,
	"IE": true,
	"AU": true,
	"NZ": true,
	"ZA": true,
}

func (u *User) PrefersUKSpelling() bool {
	return ukSpellingCountries[u.CountryCode]
}
