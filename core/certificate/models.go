package certificate

import (
	"time"
)

// Certificate is a course completion certificate.
type Certificate struct {
	ID         string    `json:"certificateId"`
	UserID     string    `json:"userId"`
	UserName   string    `json:"userName"`
	CourseName string    `json:"courseName"`
	IssuedAt   time.Time `json:"issuedAt"`
	URL        string    `json:"url"`
}

func (c Certificate) Key() string { return c.ID }

// Issue is the body of the certificate issuance endpoint.
type Issue struct {
	UserIDs  []string `json:"userIds" validate:"required,min=1"`
	CourseID string   `json:"courseId" validate:"required"`
}
