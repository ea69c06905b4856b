// Package model defines database models
package model

import "time"

type Status string

const (
	StatusActive      Status = "active"
	StatusDeactivated Status = "deactivated"
)

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusDeactivated
}

type File struct {
	ID          string `gorm:"primaryKey;size:36" json:"id"`
	UploaderID  string `gorm:"index;not null" json:"uploaderId"`
	Title       string `gorm:"size:255" json:"title"`
	Description string `gorm:"size:255" json:"description"`
	OriginName  string `gorm:"size:255" json:"originName"` // File name as sent by the uploader
	Location    string `gorm:"size:255;not null" json:"location"` // Blob store key
	Status      Status `gorm:"size:16;not null;index" json:"status"`
	// Nil only for records created through the administrative path without metadata
	MetaData   *MetaData `gorm:"type:text" json:"metaData"`
	CreatedAt  time.Time `gorm:"not null;autoCreateTime:false" json:"createdAt"`
	ModifiedAt time.Time `gorm:"not null" json:"modifiedAt"`
}

func (File) TableName() string {
	return "files"
}
