package postgres

import (
	"context"
	"database/sql"

	"github.com/smiledesk/clinic-booking/internal"
	"github.com/smiledesk/clinic-booking/internal/notification"
	"gorm.io/gorm"
)

type ContactRepository struct {
	db *gorm.DB
}

func NewContactRepository(db *gorm.DB) *ContactRepository {
	return &ContactRepository{db: db}
}

func (r *ContactRepository) GetAppointmentContact(ctx context.Context, appointmentID int64) (*notification.Contact, error) {
	query := `SELECT a.id, p.email, p.name, d.name, a.starts_at, a.ends_at
	          FROM appointments a
	          JOIN users p ON p.id = a.patient_id
	          JOIN users d ON d.id = a.dentist_id
	          WHERE a.id = ?`

	var contact notification.Contact
	row := r.db.WithContext(ctx).Raw(query, appointmentID).Row()
	err := row.Scan(&contact.AppointmentID, &contact.PatientEmail, &contact.PatientName,
		&contact.DentistName, &contact.StartsAt, &contact.EndsAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, internal.ErrAppointmentNotFound
		}
		return nil, err
	}

	return &contact, nil
}
