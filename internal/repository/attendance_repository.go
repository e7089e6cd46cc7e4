package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"service-schedule/internal/domain"
)

// AttendanceFilter narrows List. Zero fields are not applied.
type AttendanceFilter struct {
	StudentID *uuid.UUID
	CourseID  *uuid.UUID
	MarkedBy  *uuid.UUID
	From      *time.Time
	To        *time.Time
}

type AttendanceRepository interface {
	ExistsMarked(ctx context.Context, courseID uuid.UUID, date time.Time, markedBy uuid.UUID) (bool, error)
	InsertBatch(ctx context.Context, records []domain.AttendanceRecord) error
	DeleteScope(ctx context.Context, courseID uuid.UUID, date time.Time, timetableID uuid.UUID) (int64, error)
	ListScope(ctx context.Context, courseID uuid.UUID, date time.Time, timetableID uuid.UUID) ([]domain.AttendanceRecord, error)
	List(ctx context.Context, filter AttendanceFilter) ([]domain.AttendanceRecord, error)
	LockCourseDate(ctx context.Context, courseID uuid.UUID, date time.Time) error
}

type AttendancePostgresRepository struct {
	execer Execer
}

func NewAttendancePostgresRepository(execer Execer) *AttendancePostgresRepository {
	return &AttendancePostgresRepository{execer: execer}
}

const attendanceColumns = `id, student_id, course_id, date, status, marked_by, timetable_id`

func (r *AttendancePostgresRepository) ExistsMarked(ctx context.Context, courseID uuid.UUID, date time.Time, markedBy uuid.UUID) (bool, error) {
	const query = `
SELECT EXISTS (
	SELECT 1
	FROM timetable.attendance_records
	WHERE course_id = $1 AND date = $2 AND marked_by = $3
)
`

	var exists bool
	if err := r.execer.QueryRowContext(ctx, query, courseID, date, markedBy).Scan(&exists); err != nil {
		return false, errors.Wrapf(err, "check attendance for course %s on %s", courseID, date.Format(domain.DateLayout))
	}
	return exists, nil
}

// InsertBatch writes all records in one multi-row INSERT.
func (r *AttendancePostgresRepository) InsertBatch(ctx context.Context, records []domain.AttendanceRecord) error {
	if len(records) == 0 {
		return nil
	}

	const perRow = 7
	values := make([]string, 0, len(records))
	args := make([]any, 0, len(records)*perRow)
	for i, record := range records {
		base := i * perRow
		values = append(values, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, now())",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7))
		args = append(args,
			record.ID,
			record.StudentID,
			record.CourseID,
			record.Date,
			string(record.Status),
			record.MarkedBy,
			record.TimetableID,
		)
	}

	query := `
INSERT INTO timetable.attendance_records (` + attendanceColumns + `, created_at)
VALUES ` + strings.Join(values, ",\n")

	_, err := r.execer.ExecContext(ctx, query, args...)
	return errors.Wrapf(err, "insert %d attendance records", len(records))
}

func (r *AttendancePostgresRepository) DeleteScope(ctx context.Context, courseID uuid.UUID, date time.Time, timetableID uuid.UUID) (int64, error) {
	const query = `
DELETE FROM timetable.attendance_records
WHERE course_id = $1 AND date = $2 AND timetable_id = $3
`

	result, err := r.execer.ExecContext(ctx, query, courseID, date, timetableID)
	if err != nil {
		return 0, errors.Wrap(err, "delete attendance scope")
	}
	deleted, err := result.RowsAffected()
	return deleted, errors.Wrap(err, "delete attendance scope")
}

func (r *AttendancePostgresRepository) ListScope(ctx context.Context, courseID uuid.UUID, date time.Time, timetableID uuid.UUID) ([]domain.AttendanceRecord, error) {
	const query = `
SELECT ` + attendanceColumns + `
FROM timetable.attendance_records
WHERE course_id = $1 AND date = $2 AND timetable_id = $3
ORDER BY student_id
`

	records, err := r.query(ctx, query, courseID, date, timetableID)
	return records, errors.Wrap(err, "list attendance scope")
}

func (r *AttendancePostgresRepository) List(ctx context.Context, filter AttendanceFilter) ([]domain.AttendanceRecord, error) {
	var (
		conditions []string
		args       []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf("%s $%d", column, len(args)))
	}
	if filter.StudentID != nil {
		add("student_id =", *filter.StudentID)
	}
	if filter.CourseID != nil {
		add("course_id =", *filter.CourseID)
	}
	if filter.MarkedBy != nil {
		add("marked_by =", *filter.MarkedBy)
	}
	if filter.From != nil {
		add("date >=", *filter.From)
	}
	if filter.To != nil {
		add("date <=", *filter.To)
	}

	query := `SELECT ` + attendanceColumns + ` FROM timetable.attendance_records`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY date ASC, course_id ASC, student_id ASC`

	records, err := r.query(ctx, query, args...)
	return records, errors.Wrap(err, "list attendance")
}

// LockCourseDate serializes both marking protocols for one course and date.
func (r *AttendancePostgresRepository) LockCourseDate(ctx context.Context, courseID uuid.UUID, date time.Time) error {
	return advisoryLock(ctx, r.execer, "timetable.attendance:"+courseID.String()+":"+date.Format(domain.DateLayout))
}

func (r *AttendancePostgresRepository) query(ctx context.Context, query string, args ...any) ([]domain.AttendanceRecord, error) {
	rows, err := r.execer.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.AttendanceRecord
	for rows.Next() {
		var record domain.AttendanceRecord
		var status string
		if err := rows.Scan(
			&record.ID,
			&record.StudentID,
			&record.CourseID,
			&record.Date,
			&status,
			&record.MarkedBy,
			&record.TimetableID,
		); err != nil {
			return nil, err
		}
		record.Status = domain.AttendanceStatus(status)
		record.Date = domain.CivilDate(record.Date)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}
