package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrInvalidInput  = errors.New("store: invalid consultation")
	ErrUnknownDoctor = errors.New("store: unknown doctor")
)

// foreignKeyViolation is the PostgreSQL SQLSTATE for a missing referenced row.
const foreignKeyViolation = "23503"

// ConsultationInput is one saved consultation together with the patient
// record it updates.
type ConsultationInput struct {
	DoctorID         *int64   `json:"doctor_id"`
	PatientID        string   `json:"patient_id"`
	PatientName      string   `json:"patient_name"`
	PatientAge       int      `json:"patient_age"`
	Description      string   `json:"description"`
	ImagePath        string   `json:"image_path"`
	PredictionStatus string   `json:"prediction_status"`
	RiskLevel        string   `json:"risk_level"`
	Confidence       *float64 `json:"confidence"`
}

// Validate checks the fields the schema cannot default.
func (in ConsultationInput) Validate() error {
	var problems []string
	if strings.TrimSpace(in.PatientID) == "" {
		problems = append(problems, "patient_id is required")
	}
	if strings.TrimSpace(in.PatientName) == "" {
		problems = append(problems, "patient_name is required")
	}
	if in.PatientAge < 0 || in.PatientAge > 150 {
		problems = append(problems, "patient_age is out of range")
	}
	if in.Confidence != nil && (*in.Confidence < 0 || *in.Confidence > 100) {
		problems = append(problems, "confidence must be between 0 and 100")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(problems, "; "))
	}
	return nil
}

// Consultation is a stored consultation row.
type Consultation struct {
	ID        uuid.UUID `json:"id"`
	PatientID string    `json:"patient_id"`
	CreatedAt time.Time `json:"created_at"`
}

// PatientSummary is a patient with the fields of their latest consultation,
// all nil when they have none.
type PatientSummary struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Age         int        `json:"age"`
	LastVisit   *time.Time `json:"-"`
	Status      *string    `json:"status"`
	RiskLevel   *string    `json:"riskLevel"`
	Confidence  *float64   `json:"confidence"`
	Description *string    `json:"description"`
}

// MarshalJSON renders the last visit as a calendar date.
func (p PatientSummary) MarshalJSON() ([]byte, error) {
	type plain PatientSummary
	var lastVisit *string
	if p.LastVisit != nil {
		d := p.LastVisit.Format(time.DateOnly)
		lastVisit = &d
	}
	return json.Marshal(struct {
		plain
		LastVisit *string `json:"lastVisit"`
	}{plain(p), lastVisit})
}

const upsertPatientSQL = `
INSERT INTO patients (id, name, age) VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, age = EXCLUDED.age`

const insertConsultationSQL = `
INSERT INTO consultations
    (id, doctor_id, patient_id, description, image_path, prediction_status, risk_level, confidence)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING created_at`

// SaveConsultation upserts the patient and records the consultation in one
// transaction.
func (s *Store) SaveConsultation(ctx context.Context, in ConsultationInput) (*Consultation, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	c := &Consultation{ID: uuid.New(), PatientID: in.PatientID}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, upsertPatientSQL, in.PatientID, in.PatientName, in.PatientAge); err != nil {
			return fmt.Errorf("store: upsert patient: %w", err)
		}
		row := tx.QueryRowContext(ctx, insertConsultationSQL,
			c.ID, in.DoctorID, in.PatientID,
			nullString(in.Description), nullString(in.ImagePath),
			nullString(in.PredictionStatus), nullString(in.RiskLevel), in.Confidence)
		if err := row.Scan(&c.CreatedAt); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation && in.DoctorID != nil {
				return fmt.Errorf("%w: %d", ErrUnknownDoctor, *in.DoctorID)
			}
			return fmt.Errorf("store: insert consultation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

const listPatientsSQL = `
SELECT p.id, p.name, p.age,
       c.created_at, c.prediction_status, c.risk_level, c.confidence, c.description
FROM patients p
LEFT JOIN LATERAL (
    SELECT created_at, prediction_status, risk_level, confidence, description
    FROM consultations
    WHERE patient_id = p.id
    ORDER BY created_at DESC
    LIMIT 1
) c ON true
ORDER BY p.id`

// ListPatients returns every patient with their latest consultation.
func (s *Store) ListPatients(ctx context.Context) ([]PatientSummary, error) {
	rows, err := s.db.QueryContext(ctx, listPatientsSQL)
	if err != nil {
		return nil, fmt.Errorf("store: list patients: %w", err)
	}
	defer rows.Close()

	out := []PatientSummary{}
	for rows.Next() {
		var (
			p          PatientSummary
			lastVisit  sql.NullTime
			status     sql.NullString
			riskLevel  sql.NullString
			confidence sql.NullFloat64
			descr      sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Age,
			&lastVisit, &status, &riskLevel, &confidence, &descr); err != nil {
			return nil, fmt.Errorf("store: scan patient: %w", err)
		}
		if lastVisit.Valid {
			p.LastVisit = &lastVisit.Time
		}
		p.Status = ptr(status)
		p.RiskLevel = ptr(riskLevel)
		if confidence.Valid {
			p.Confidence = &confidence.Float64
		}
		p.Description = ptr(descr)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list patients: %w", err)
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func ptr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
