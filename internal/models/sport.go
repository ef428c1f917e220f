package models

import "gorm.io/gorm"

// Sport is a catalog entry events can be tagged with.
type Sport struct {
	gorm.Model
	Name string `gorm:"size:100;unique;not null"`
	Icon string `gorm:"size:16"`
}
