package models

import "time"

type TemplateStatus string

const (
	TemplateActive   TemplateStatus = "active"
	TemplateInactive TemplateStatus = "inactive"
)

type PaperSize string

const (
	PaperA4              PaperSize = "A4"
	PaperA4Landscape     PaperSize = "A4-landscape"
	PaperLetter          PaperSize = "Letter"
	PaperLetterLandscape PaperSize = "Letter-landscape"
)

func (p PaperSize) Valid() bool {
	switch p {
	case PaperA4, PaperA4Landscape, PaperLetter, PaperLetterLandscape:
		return true
	default:
		return false
	}
}

const (
	MinBackgroundOpacity = 0.1
	MaxBackgroundOpacity = 0.8
)

// CertificateTemplate не зависит от сессий: один шаблон могут использовать многие мероприятия.
type CertificateTemplate struct {
	ID                int64          `db:"id" json:"id"`
	Name              string         `db:"name" json:"name"`
	Content           string         `db:"content" json:"content"`
	Background        []byte         `db:"background" json:"background,omitempty"`
	BackgroundOpacity float64        `db:"background_opacity" json:"background_opacity"`
	PaperSize         PaperSize      `db:"paper_size" json:"paper_size"`
	NumberFormat      string         `db:"number_format" json:"number_format"`
	Status            TemplateStatus `db:"status" json:"status"`
	CreatedBy         *int64         `db:"created_by" json:"created_by,omitempty"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updated_at"`
}

type CertificateType string

const (
	CertificateCompletion    CertificateType = "completion"
	CertificateParticipation CertificateType = "participation"
)

func (t CertificateType) Valid() bool {
	return t == CertificateCompletion || t == CertificateParticipation
}

type CertificateStatus string

const (
	CertificateActive  CertificateStatus = "active"
	CertificateRevoked CertificateStatus = "revoked"
)

// IssuedCertificate неизменяем после выдачи, кроме перехода active → revoked.
type IssuedCertificate struct {
	ID                      int64             `db:"id" json:"id"`
	CertificateNumber       string            `db:"certificate_number" json:"certificate_number"`
	VerificationCode        string            `db:"verification_code" json:"verification_code"`
	Type                    CertificateType   `db:"type" json:"type"`
	UserID                  int64             `db:"user_id" json:"user_id"`
	EventID                 int64             `db:"event_id" json:"event_id"`
	TemplateID              int64             `db:"template_id" json:"template_id"`
	ParticipantEvaluationID *int64            `db:"participant_evaluation_id" json:"participant_evaluation_id,omitempty"`
	TrainingType            string            `db:"training_type" json:"training_type"`
	Score                   *float64          `db:"score" json:"score,omitempty"`
	Document                string            `db:"document" json:"-"`
	ContentHash             string            `db:"content_hash" json:"content_hash"`
	PaperSize               PaperSize         `db:"paper_size" json:"paper_size"`
	AutoIssued              bool              `db:"auto_issued" json:"auto_issued"`
	IssuedAt                time.Time         `db:"issued_at" json:"issued_at"`
	IssuerID                int64             `db:"issuer_id" json:"issuer_id"`
	Status                  CertificateStatus `db:"status" json:"status"`
	RevokedAt               *time.Time        `db:"revoked_at" json:"revoked_at,omitempty"`
	RevokedBy               *int64            `db:"revoked_by" json:"revoked_by,omitempty"`
	RevokedReason           *string           `db:"revoked_reason" json:"revoked_reason,omitempty"`
}

func (c IssuedCertificate) IsActive() bool { return c.Status == CertificateActive }

// RenderDiagnostic — запись для операторов о проблеме в шаблоне, обнаруженной при рендере.
type RenderDiagnostic struct {
	ID            int64     `db:"id" json:"id"`
	CertificateID *int64    `db:"certificate_id" json:"certificate_id,omitempty"`
	TemplateID    int64     `db:"template_id" json:"template_id"`
	Kind          string    `db:"kind" json:"kind"`
	Offset        int       `db:"offset" json:"offset"`
	Detail        string    `db:"detail" json:"detail"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
