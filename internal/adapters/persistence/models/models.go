package models

import (
	"time"

	"gorm.io/gorm"
)

// ============================================================
// Auth & User Tables
// ============================================================

// User represents users table. Users are deactivated, never deleted.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"uniqueIndex;size:50;not null" json:"username"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	Role      string    `gorm:"size:50;not null;index" json:"role"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// UserResponse DTO
type UserResponse struct {
	ID        uint      `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func (u *User) ToResponse() *UserResponse {
	return &UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Role:      u.Role,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}

// RefreshToken represents refresh_tokens table
type RefreshToken struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"index;not null" json:"user_id"`
	TokenHash string     `gorm:"size:255;not null;index" json:"-"`
	ExpiresAt time.Time  `gorm:"not null;index" json:"expires_at"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	RevokedAt *time.Time `gorm:"index" json:"revoked_at"`
	User      User       `gorm:"foreignKey:UserID" json:"-"`
}

func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

func (rt *RefreshToken) IsRevoked() bool {
	return rt.RevokedAt != nil
}

func (rt *RefreshToken) IsExpired() bool {
	return time.Now().After(rt.ExpiresAt)
}

// ============================================================
// Permit Tables
// ============================================================

// PermitApplication is the main workflow record.
type PermitApplication struct {
	ID              uint    `gorm:"primaryKey" json:"id"`
	PermitNumber    *string `gorm:"size:20;uniqueIndex" json:"permit_number"`
	ApplicantName   string  `gorm:"size:100;not null" json:"applicant_name"`
	PhysicalAddress string  `gorm:"size:200;not null" json:"physical_address"`
	AccountNumber   string  `gorm:"size:50" json:"account_number"`
	Cellular        string  `gorm:"size:20" json:"cellular"`
	NumBoreholes    int     `gorm:"not null;default:0" json:"num_boreholes"`
	LandSize        float64 `json:"land_size"`
	GPSX            float64 `gorm:"column:gps_x" json:"gps_x"`
	GPSY            float64 `gorm:"column:gps_y" json:"gps_y"`
	WaterSource     string  `gorm:"size:50;index" json:"water_source"`
	PermitType      string  `gorm:"size:50;index" json:"permit_type"`
	WaterAllocation float64 `json:"water_allocation"`
	Status          string  `gorm:"size:20;not null;default:'Unsubmitted';index" json:"status"`
	CreatedBy       uint    `gorm:"not null;index" json:"created_by"`

	SubmittedAt       *time.Time `json:"submitted_at"`
	ReviewedBy        *uint      `json:"reviewed_by"`
	ReviewedAt        *time.Time `json:"reviewed_at"`
	ManagerReviewedBy *uint      `json:"manager_reviewed_by"`
	ManagerReviewedAt *time.Time `json:"manager_reviewed_at"`
	ApprovedBy        *uint      `json:"approved_by"`
	ApprovedAt        *time.Time `json:"approved_at"`
	RejectedBy        *uint      `json:"rejected_by"`
	RejectedAt        *time.Time `json:"rejected_at"`
	ValidUntil        *time.Time `gorm:"index" json:"valid_until"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	// Relations
	Creator   *User      `gorm:"foreignKey:CreatedBy" json:"creator,omitempty"`
	Documents []Document `gorm:"foreignKey:ApplicationID;constraint:OnDelete:CASCADE" json:"documents,omitempty"`
	Comments  []Comment  `gorm:"foreignKey:ApplicationID;constraint:OnDelete:CASCADE" json:"comments,omitempty"`
}

func (PermitApplication) TableName() string {
	return "permit_applications"
}

// ApplicationResponse DTO
type ApplicationResponse struct {
	ID                uint                `json:"id"`
	PermitNumber      *string             `json:"permit_number"`
	ApplicantName     string              `json:"applicant_name"`
	PhysicalAddress   string              `json:"physical_address"`
	AccountNumber     string              `json:"account_number"`
	Cellular          string              `json:"cellular"`
	NumBoreholes      int                 `json:"num_boreholes"`
	LandSize          float64             `json:"land_size"`
	GPSX              float64             `json:"gps_x"`
	GPSY              float64             `json:"gps_y"`
	WaterSource       string              `json:"water_source"`
	PermitType        string              `json:"permit_type"`
	WaterAllocation   float64             `json:"water_allocation"`
	Status            string              `json:"status"`
	CreatedBy         uint                `json:"created_by"`
	CreatorName       string              `json:"creator_name,omitempty"`
	SubmittedAt       *time.Time          `json:"submitted_at"`
	ReviewedBy        *uint               `json:"reviewed_by"`
	ReviewedAt        *time.Time          `json:"reviewed_at"`
	ManagerReviewedBy *uint               `json:"manager_reviewed_by"`
	ManagerReviewedAt *time.Time          `json:"manager_reviewed_at"`
	ApprovedBy        *uint               `json:"approved_by"`
	ApprovedAt        *time.Time          `json:"approved_at"`
	RejectedBy        *uint               `json:"rejected_by"`
	RejectedAt        *time.Time          `json:"rejected_at"`
	ValidUntil        *time.Time          `json:"valid_until"`
	Documents         []*DocumentResponse `json:"documents,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

func (a *PermitApplication) ToResponse() *ApplicationResponse {
	resp := &ApplicationResponse{
		ID:                a.ID,
		PermitNumber:      a.PermitNumber,
		ApplicantName:     a.ApplicantName,
		PhysicalAddress:   a.PhysicalAddress,
		AccountNumber:     a.AccountNumber,
		Cellular:          a.Cellular,
		NumBoreholes:      a.NumBoreholes,
		LandSize:          a.LandSize,
		GPSX:              a.GPSX,
		GPSY:              a.GPSY,
		WaterSource:       a.WaterSource,
		PermitType:        a.PermitType,
		WaterAllocation:   a.WaterAllocation,
		Status:            a.Status,
		CreatedBy:         a.CreatedBy,
		SubmittedAt:       a.SubmittedAt,
		ReviewedBy:        a.ReviewedBy,
		ReviewedAt:        a.ReviewedAt,
		ManagerReviewedBy: a.ManagerReviewedBy,
		ManagerReviewedAt: a.ManagerReviewedAt,
		ApprovedBy:        a.ApprovedBy,
		ApprovedAt:        a.ApprovedAt,
		RejectedBy:        a.RejectedBy,
		RejectedAt:        a.RejectedAt,
		ValidUntil:        a.ValidUntil,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}

	if a.Creator != nil {
		resp.CreatorName = a.Creator.Username
	}
	for i := range a.Documents {
		resp.Documents = append(resp.Documents, a.Documents[i].ToResponse())
	}

	return resp
}

// PermitCounter holds the last issued permit sequence per calendar year.
type PermitCounter struct {
	Year    int `gorm:"primaryKey;autoIncrement:false" json:"year"`
	LastSeq int `gorm:"not null;default:0" json:"last_seq"`
}

func (PermitCounter) TableName() string {
	return "permit_counters"
}

// Document is a supporting file attached to an application.
type Document struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	ApplicationID    uint      `gorm:"not null;index" json:"application_id"`
	DocumentType     string    `gorm:"size:50;not null;index" json:"document_type"`
	OriginalFilename string    `gorm:"size:255;not null" json:"original_filename"`
	FilePath         string    `gorm:"size:500;not null" json:"-"`
	FileHash         string    `gorm:"size:64;not null" json:"file_hash"`
	FileSize         int64     `gorm:"not null" json:"file_size"`
	ContentType      string    `gorm:"size:100" json:"content_type"`
	UploadedBy       uint      `gorm:"not null" json:"uploaded_by"`
	UploadedAt       time.Time `gorm:"not null" json:"uploaded_at"`

	Uploader *User `gorm:"foreignKey:UploadedBy" json:"uploader,omitempty"`
}

func (Document) TableName() string {
	return "documents"
}

// DocumentResponse DTO
type DocumentResponse struct {
	ID               uint      `json:"id"`
	ApplicationID    uint      `json:"application_id"`
	DocumentType     string    `json:"document_type"`
	OriginalFilename string    `json:"original_filename"`
	FileHash         string    `json:"file_hash"`
	FileSize         int64     `json:"file_size"`
	ContentType      string    `json:"content_type"`
	UploadedBy       uint      `json:"uploaded_by"`
	UploaderName     string    `json:"uploader_name,omitempty"`
	UploadedAt       time.Time `json:"uploaded_at"`
}

func (d *Document) ToResponse() *DocumentResponse {
	resp := &DocumentResponse{
		ID:               d.ID,
		ApplicationID:    d.ApplicationID,
		DocumentType:     d.DocumentType,
		OriginalFilename: d.OriginalFilename,
		FileHash:         d.FileHash,
		FileSize:         d.FileSize,
		ContentType:      d.ContentType,
		UploadedBy:       d.UploadedBy,
		UploadedAt:       d.UploadedAt,
	}
	if d.Uploader != nil {
		resp.UploaderName = d.Uploader.Username
	}
	return resp
}

// Comment is an append-only note on an application.
type Comment struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ApplicationID uint      `gorm:"not null;index" json:"application_id"`
	UserID        uint      `gorm:"not null;index" json:"user_id"`
	Content       string    `gorm:"type:text;not null" json:"content"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (Comment) TableName() string {
	return "comments"
}

// ActivityLog is one append-only audit row.
type ActivityLog struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ApplicationID uint      `gorm:"not null;index" json:"application_id"`
	DocumentID    *uint     `gorm:"index" json:"document_id,omitempty"`
	UserID        uint      `gorm:"not null;index" json:"user_id"`
	Action        string    `gorm:"size:100;not null;index" json:"action"`
	Details       string    `gorm:"type:text" json:"details"`
	Timestamp     time.Time `gorm:"not null;index" json:"timestamp"`

	User        *User              `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Application *PermitApplication `gorm:"foreignKey:ApplicationID" json:"-"`
}

func (ActivityLog) TableName() string {
	return "activity_logs"
}

// ============================================================
// Auto Migration
// ============================================================

// AutoMigrate creates or updates every table the service owns.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&RefreshToken{},
		&PermitApplication{},
		&PermitCounter{},
		&Document{},
		&Comment{},
		&ActivityLog{},
	)
}
