package model

import "time"

type ScheduleSlot struct {
	DayOfWeek string `json:"dayOfWeek"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

type Class struct {
	ID              string
	Name            string
	Subject         string
	Description     string
	Schedule        []ScheduleSlot
	Location        string
	MaxStudents     *int
	GradeLevel      string
	PricePerSession *float64
	TeacherID       string
	CreatedBy       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DeletedAt       *time.Time
}

// HasCapacityFor reports whether occupied seats plus one more still fit.
// A class without MaxStudents has no limit.
func (c Class) HasCapacityFor(occupied int) bool {
	if c.MaxStudents == nil {
		return true
	}
	return occupied < *c.MaxStudents
}

type MembershipStatus string

const (
	MembershipPending  MembershipStatus = "pending"
	MembershipApproved MembershipStatus = "approved"
)

// Membership is the single record of a profile's relation to a class. The
// class roster, its pending queue and the profile's registered classes are
// all views over memberships.
type Membership struct {
	ClassID     string
	ProfileID   string
	Status      MembershipStatus
	RequestedAt time.Time
	ApprovedAt  *time.Time
	Seq         int64
}

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

func ParseGender(value string) (Gender, bool) {
	switch Gender(value) {
	case GenderMale, GenderFemale, GenderOther:
		return Gender(value), true
	case "":
		return GenderOther, true
	}
	return "", false
}

type Profile struct {
	ID                string
	IdentityID        string
	Role              string
	Email             string
	Username          string
	Phone             string
	UserClass         string
	UserSchool        string
	Address           string
	Avatar            string
	DateOfBirth       *time.Time
	Gender            Gender
	CreatedAt         time.Time
	UpdatedAt         time.Time
	RegisteredClasses []Membership
}

type ExerciseType string

const (
	ExerciseEssay          ExerciseType = "essay"
	ExerciseMultipleChoice ExerciseType = "multiple_choice"
	ExerciseFileUpload     ExerciseType = "file_upload"
)

func ParseExerciseType(value string) (ExerciseType, bool) {
	switch ExerciseType(value) {
	case ExerciseEssay, ExerciseMultipleChoice, ExerciseFileUpload:
		return ExerciseType(value), true
	case "":
		return ExerciseEssay, true
	}
	return "", false
}

type ExerciseStatus string

const (
	StatusOpen   ExerciseStatus = "open"
	StatusClosed ExerciseStatus = "closed"
	StatusGraded ExerciseStatus = "graded"
)

func ParseExerciseStatus(value string) (ExerciseStatus, bool) {
	switch ExerciseStatus(value) {
	case StatusOpen, StatusClosed, StatusGraded:
		return ExerciseStatus(value), true
	}
	return "", false
}

type Question struct {
	Text                 string   `json:"question"`
	Options              []string `json:"options"`
	CorrectAnswerIndices []int    `json:"correctAnswerIndices"`
	Points               float64  `json:"points"`
	Explanation          string   `json:"explanation,omitempty"`
}

type Attachment struct {
	FileName   string    `json:"fileName"`
	FileURL    string    `json:"fileUrl"`
	FileSize   int64     `json:"fileSize"`
	MimeType   string    `json:"mimeType"`
	UploadedAt time.Time `json:"uploadedAt"`
}

type Exercise struct {
	ID          string
	ClassID     string
	CreatedBy   string
	Title       string
	Description string
	Type        ExerciseType
	Subject     string
	MaxScore    float64
	StartDate   *time.Time
	DueDate     time.Time
	Status      ExerciseStatus
	Questions   []Question
	Attachments []Attachment
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
}

func (e Exercise) IsOverdue(now time.Time) bool {
	return now.After(e.DueDate)
}

type Submission struct {
	ID          string
	ExerciseID  string
	StudentID   string
	SubmittedAt time.Time
	Content     string
	FileURL     string
	Files       []Attachment
	Answers     []int
	Grade       *float64
	Feedback    string
	GradedAt    *time.Time
}

func (s Submission) IsGraded() bool {
	return s.Grade != nil
}

func (s Submission) IsLate(dueDate time.Time) bool {
	return s.SubmittedAt.After(dueDate)
}

// Member is a membership joined with the public fields of its profile.
type Member struct {
	Membership
	Username string
	Email    string
	Avatar   string
}

type SeatCount struct {
	Approved int
	Pending  int
}
