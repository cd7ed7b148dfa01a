package models

type AttendanceStatus string

const (
	AttendancePresent   AttendanceStatus = "present"
	AttendanceLate      AttendanceStatus = "late"
	AttendanceAbsent    AttendanceStatus = "absent"
	AttendanceExcused   AttendanceStatus = "excused"
	AttendanceNotMarked AttendanceStatus = "not_marked"
	// AttendanceCompleted встречается в выгрузках внешней системы посещаемости.
	AttendanceCompleted AttendanceStatus = "completed"
)

func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceLate, AttendanceAbsent, AttendanceExcused, AttendanceNotMarked, AttendanceCompleted:
		return true
	default:
		return false
	}
}

// AttendanceRecord читается только на чтение из внешней системы.
type AttendanceRecord struct {
	UserID  int64            `db:"user_id" json:"user_id"`
	EventID int64            `db:"event_id" json:"event_id"`
	Status  AttendanceStatus `db:"status" json:"status"`
}
