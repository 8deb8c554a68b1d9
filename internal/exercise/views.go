package exercise

import (
	"time"

	"semaphore/classroom/internal/model"
)

type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

type PageQuery struct {
	Page  int
	Limit int
}

const (
	defaultLimit = 10
	maxLimit     = 50
)

func (q PageQuery) normalize() PageQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = defaultLimit
	}
	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	return q
}

func paginate[T any](items []T, q PageQuery) ([]T, Pagination) {
	q = q.normalize()
	total := len(items)
	totalPages := (total + q.Limit - 1) / q.Limit
	start := (q.Page - 1) * q.Limit
	if start > total {
		start = total
	}
	end := start + q.Limit
	if end > total {
		end = total
	}
	return items[start:end], Pagination{
		Page:       q.Page,
		Limit:      q.Limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    q.Page < totalPages,
		HasPrev:    q.Page > 1,
	}
}

// MySubmissionStatus is what a student sees about their own work in an
// exercise listing.
type MySubmissionStatus struct {
	Submitted   bool       `json:"submitted"`
	SubmittedAt *time.Time `json:"submittedAt,omitempty"`
	Grade       *float64   `json:"grade,omitempty"`
	IsLate      bool       `json:"isLate"`
}

type Summary struct {
	ID              string               `json:"id"`
	ClassID         string               `json:"classId"`
	Title           string               `json:"title"`
	Description     string               `json:"description"`
	Type            model.ExerciseType   `json:"type"`
	Subject         string               `json:"subject"`
	MaxScore        float64              `json:"maxScore"`
	StartDate       *time.Time           `json:"startDate,omitempty"`
	DueDate         time.Time            `json:"dueDate"`
	Status          model.ExerciseStatus `json:"status"`
	CreatedAt       time.Time            `json:"createdAt"`
	HasAttachments  bool                 `json:"hasAttachments"`
	AttachmentCount int                  `json:"attachmentCount"`
	QuestionCount   int                  `json:"questionCount"`
	IsOverdue       bool                 `json:"isOverdue"`
	DaysToDueDate   int                  `json:"daysToDueDate"`
	SubmissionCount *int                 `json:"submissionCount,omitempty"`
	GradedCount     *int                 `json:"gradedCount,omitempty"`
	MySubmission    *MySubmissionStatus  `json:"mySubmission,omitempty"`
}

type SummaryPage struct {
	Items      []Summary  `json:"exercises"`
	Pagination Pagination `json:"pagination"`
}

type SubmissionView struct {
	ID           string             `json:"id"`
	ExerciseID   string             `json:"exerciseId"`
	StudentID    string             `json:"studentId"`
	StudentName  string             `json:"studentName,omitempty"`
	StudentEmail string             `json:"studentEmail,omitempty"`
	SubmittedAt  time.Time          `json:"submittedAt"`
	Content      string             `json:"content,omitempty"`
	FileURL      string             `json:"fileUrl,omitempty"`
	Files        []model.Attachment `json:"files,omitempty"`
	Answers      []int              `json:"answers,omitempty"`
	Grade        *float64           `json:"grade"`
	Feedback     string             `json:"feedback,omitempty"`
	GradedAt     *time.Time         `json:"gradedAt,omitempty"`
	IsLate       bool               `json:"isLate"`
	HasGrade     bool               `json:"hasGrade"`
}

// QuestionView carries the answer key only when it may be shown.
type QuestionView struct {
	Text                 string   `json:"question"`
	Options              []string `json:"options"`
	Points               float64  `json:"points"`
	CorrectAnswerIndices []int    `json:"correctAnswerIndices,omitempty"`
	Explanation          string   `json:"explanation,omitempty"`
}

type Detail struct {
	Summary
	Questions   []QuestionView     `json:"questions"`
	Attachments []model.Attachment `json:"attachments"`
	CreatedBy   string             `json:"createdBy"`
	UpdatedAt   time.Time          `json:"updatedAt"`
	Submissions []SubmissionView   `json:"submissions,omitempty"`
	Submission  *SubmissionView    `json:"submission,omitempty"`
}

type SubmissionStats struct {
	Total        int      `json:"total"`
	Graded       int      `json:"graded"`
	Ungraded     int      `json:"ungraded"`
	AverageGrade *float64 `json:"averageGrade"`
	MaxGrade     *float64 `json:"maxGrade"`
	MinGrade     *float64 `json:"minGrade"`
}

type SubmissionList struct {
	Exercise    Summary          `json:"exercise"`
	Submissions []SubmissionView `json:"submissions"`
	Statistics  SubmissionStats  `json:"statistics"`
}

type MySubmissionDetail struct {
	Exercise   Detail         `json:"exercise"`
	Submission SubmissionView `json:"submission"`
}

type MySubmissionRow struct {
	SubmissionID  string             `json:"submissionId"`
	ExerciseID    string             `json:"exerciseId"`
	ExerciseTitle string             `json:"exerciseTitle"`
	ExerciseType  model.ExerciseType `json:"exerciseType"`
	ClassID       string             `json:"classId"`
	ClassName     string             `json:"className"`
	MaxScore      float64            `json:"maxScore"`
	DueDate       time.Time          `json:"dueDate"`
	SubmittedAt   time.Time          `json:"submittedAt"`
	Grade         *float64           `json:"grade"`
	Feedback      string             `json:"feedback,omitempty"`
	IsLate        bool               `json:"isLate"`
	HasGrade      bool               `json:"hasGrade"`
}

type MySubmissionStats struct {
	Total        int      `json:"total"`
	Graded       int      `json:"graded"`
	Ungraded     int      `json:"ungraded"`
	Late         int      `json:"late"`
	AverageGrade *float64 `json:"averageGrade"`
}

type MySubmissionPage struct {
	Items      []MySubmissionRow `json:"submissions"`
	Pagination Pagination        `json:"pagination"`
	Statistics MySubmissionStats `json:"statistics"`
}

type OverviewRow struct {
	ID              string               `json:"id"`
	Title           string               `json:"title"`
	Type            model.ExerciseType   `json:"type"`
	ClassID         string               `json:"classId"`
	ClassName       string               `json:"className"`
	Status          model.ExerciseStatus `json:"status"`
	MaxScore        float64              `json:"maxScore"`
	DueDate         time.Time            `json:"dueDate"`
	CreatedAt       time.Time            `json:"createdAt"`
	IsOverdue       bool                 `json:"isOverdue"`
	SubmissionCount int                  `json:"submissionCount"`
	GradedCount     int                  `json:"gradedCount"`
	UngradedCount   int                  `json:"ungradedCount"`
	GradingProgress float64              `json:"gradingProgress"`
	GradingStatus   model.GradingStatus  `json:"gradingStatus"`
	AverageGrade    *float64             `json:"averageGrade"`
}

type OverviewStats struct {
	TotalExercises         int     `json:"totalExercises"`
	FullyGraded            int     `json:"fullyGraded"`
	PartiallyGraded        int     `json:"partiallyGraded"`
	Ungraded               int     `json:"ungraded"`
	TotalSubmissions       int     `json:"totalSubmissions"`
	GradedSubmissions      int     `json:"gradedSubmissions"`
	AverageGradingProgress float64 `json:"averageGradingProgress"`
}

type Overview struct {
	Items      []OverviewRow `json:"exercises"`
	Pagination Pagination    `json:"pagination"`
	Statistics OverviewStats `json:"statistics"`
}
