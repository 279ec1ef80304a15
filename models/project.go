package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// UploadsPrefix is the logical path under which stored images are referenced and served.
const UploadsPrefix = "/uploads/"

// Project represents a portfolio project and the image it owns
type Project struct {
	ID           uuid.UUID                   `json:"id" db:"id" gorm:"type:uuid;primaryKey;not null"`
	Title        string                      `json:"title" db:"title" gorm:"type:text;not null"`
	Description  string                      `json:"description" db:"description" gorm:"type:text;not null"`
	GithubLink   string                      `json:"githubLink" db:"github_link" gorm:"type:text;not null"`
	VideoLink    string                      `json:"videoLink" db:"video_link" gorm:"type:text;not null"`
	Technologies datatypes.JSONSlice[string] `json:"technologies" db:"technologies" gorm:"not null"`
	Image        string                      `json:"image" db:"image" gorm:"type:text;not null"`
	CreatedAt    time.Time                   `json:"createdAt" db:"created_at" gorm:"autoCreateTime;index:idx_projects_created_at"`
	UpdatedAt    time.Time                   `json:"updatedAt" db:"updated_at" gorm:"autoUpdateTime"`
}

func (Project) TableName() string { return "projects" }

// BeforeCreate assigns the id and guarantees technologies is stored as [] rather than null.
func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Technologies == nil {
		p.Technologies = datatypes.NewJSONSlice([]string{})
	}
	return nil
}

func (p *Project) AfterFind(tx *gorm.DB) error {
	if p.Technologies == nil {
		p.Technologies = datatypes.NewJSONSlice([]string{})
	}
	return nil
}

// ProjectPatch is a partial update. Nil fields keep their stored value.
type ProjectPatch struct {
	Title        *string
	Description  *string
	GithubLink   *string
	VideoLink    *string
	Technologies *[]string
	Image        *string
}

// Apply merges the supplied fields into project.
func (p ProjectPatch) Apply(project *Project) {
	if p.Title != nil {
		project.Title = *p.Title
	}
	if p.Description != nil {
		project.Description = *p.Description
	}
	if p.GithubLink != nil {
		project.GithubLink = *p.GithubLink
	}
	if p.VideoLink != nil {
		project.VideoLink = *p.VideoLink
	}
	if p.Technologies != nil {
		project.Technologies = datatypes.NewJSONSlice(append([]string{}, *p.Technologies...))
	}
	if p.Image != nil {
		project.Image = *p.Image
	}
}

func (p ProjectPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.GithubLink == nil &&
		p.VideoLink == nil && p.Technologies == nil && p.Image == nil
}
