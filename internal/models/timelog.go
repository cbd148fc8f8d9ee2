package models

import (
	"time"
)

// TimeLog is one weekly timesheet entry for an employee.
// The table is owned by the timesheet service; this service only reads it.
type TimeLog struct {
	ID             int64     `gorm:"primary_key;autoIncrement" json:"id"`
	EmployeeID     int64     `gorm:"not null;index" json:"employee_id"`
	WeekStartDate  time.Time `gorm:"type:date;not null" json:"week_start_date"`
	WeekEndDate    time.Time `gorm:"type:date;not null" json:"week_end_date"`
	MondayHours    float64   `gorm:"not null;default:0" json:"monday_hours"`
	TuesdayHours   float64   `gorm:"not null;default:0" json:"tuesday_hours"`
	WednesdayHours float64   `gorm:"not null;default:0" json:"wednesday_hours"`
	ThursdayHours  float64   `gorm:"not null;default:0" json:"thursday_hours"`
	FridayHours    float64   `gorm:"not null;default:0" json:"friday_hours"`
	PTOHours       float64   `gorm:"column:pto_hours;not null;default:0" json:"pto_hours"`
	CreatedAt      time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt      time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (TimeLog) TableName() string {
	return "timelogs"
}

// TotalHours sums the weekday hours and PTO.
func (t TimeLog) TotalHours() float64 {
	return t.MondayHours + t.TuesdayHours + t.WednesdayHours + t.ThursdayHours + t.FridayHours + t.PTOHours
}
