package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/example/taxi-dispatch/internal/models"
)

// PostgresStore backs both stores with one database. The compare-and-set
// in UpdateIf is the conditional UPDATE itself: the WHERE clause pins the
// expected status, so a raced transition simply matches zero rows.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Requests() RequestStore { return &pgRequestStore{db: p.db} }
func (p *PostgresStore) Drivers() DriverStore   { return &pgDriverStore{db: p.db} }

type pgRequestStore struct {
	db *sql.DB
}

const requestCols = `id, origin_lat, origin_lon, destination, passenger_name, special_requests,
	status, assigned_driver, driver_name, vehicle_number, estimated_arrival_minutes,
	created_at, assigned_at, arrived_at, departed_at, completed_at`

func (s *pgRequestStore) All(ctx context.Context) (map[string]models.Request, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+requestCols+` FROM requests`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()
	out := map[string]models.Request{}
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		out[r.ID] = r
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return out, nil
}

func (s *pgRequestStore) Get(ctx context.Context, id string) (models.Request, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+requestCols+` FROM requests WHERE id = $1`, id)
	r, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return models.Request{}, ErrNotFound
	}
	if err != nil {
		return models.Request{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return r, nil
}

func (s *pgRequestStore) Create(ctx context.Context, r models.Request) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO requests (`+requestCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		r.ID, r.Origin.Lat, r.Origin.Lon, r.Destination, r.PassengerName, r.SpecialRequests,
		string(r.Status), nullStr(r.AssignedDriver), nullStr(r.DriverName), nullStr(r.VehicleNumber),
		r.EstimatedArrivalMinutes, r.CreatedAt, r.AssignedAt, r.ArrivedAt, r.DepartedAt, r.CompletedAt)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *pgRequestStore) UpdateIf(ctx context.Context, id string, expected models.RequestStatus, mutate func(*models.Request) error) (models.Request, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return models.Request{}, err
	}
	if r.Status != expected {
		return models.Request{}, ErrConflict
	}
	if err := mutate(&r); err != nil {
		return models.Request{}, err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE requests SET
		status=$1, assigned_driver=$2, driver_name=$3, vehicle_number=$4,
		estimated_arrival_minutes=$5, assigned_at=$6, arrived_at=$7, departed_at=$8, completed_at=$9
		WHERE id=$10 AND status=$11`,
		string(r.Status), nullStr(r.AssignedDriver), nullStr(r.DriverName), nullStr(r.VehicleNumber),
		r.EstimatedArrivalMinutes, r.AssignedAt, r.ArrivedAt, r.DepartedAt, r.CompletedAt,
		id, string(expected))
	if err != nil {
		return models.Request{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return models.Request{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if n == 0 {
		// someone moved the record between our read and the update
		if _, err := s.Get(ctx, id); err != nil {
			return models.Request{}, err
		}
		return models.Request{}, ErrConflict
	}
	return r, nil
}

func (s *pgRequestStore) ClearAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM requests`); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (models.Request, error) {
	var r models.Request
	var status string
	var assignedDriver, driverName, vehicleNumber sql.NullString
	var assignedAt, arrivedAt, departedAt, completedAt sql.NullTime
	err := row.Scan(&r.ID, &r.Origin.Lat, &r.Origin.Lon, &r.Destination, &r.PassengerName, &r.SpecialRequests,
		&status, &assignedDriver, &driverName, &vehicleNumber, &r.EstimatedArrivalMinutes,
		&r.CreatedAt, &assignedAt, &arrivedAt, &departedAt, &completedAt)
	if err != nil {
		return models.Request{}, err
	}
	r.Status = models.RequestStatus(status)
	r.AssignedDriver = assignedDriver.String
	r.DriverName = driverName.String
	r.VehicleNumber = vehicleNumber.String
	if assignedAt.Valid {
		r.AssignedAt = &assignedAt.Time
	}
	if arrivedAt.Valid {
		r.ArrivedAt = &arrivedAt.Time
	}
	if departedAt.Valid {
		r.DepartedAt = &departedAt.Time
	}
	if completedAt.Valid {
		r.CompletedAt = &completedAt.Time
	}
	return r, nil
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

type pgDriverStore struct {
	db *sql.DB
}

func (s *pgDriverStore) All(ctx context.Context) (map[string]models.Driver, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, vehicle_number, lat, lon, status, updated_at FROM drivers`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()
	out := map[string]models.Driver{}
	for rows.Next() {
		var d models.Driver
		var status string
		if err := rows.Scan(&d.ID, &d.Name, &d.VehicleNumber, &d.Loc.Lat, &d.Loc.Lon, &status, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		d.Status = models.DriverStatus(status)
		out[d.ID] = d
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return out, nil
}

func (s *pgDriverStore) Get(ctx context.Context, id string) (models.Driver, error) {
	var d models.Driver
	var status string
	err := s.db.QueryRowContext(ctx, `SELECT id, name, vehicle_number, lat, lon, status, updated_at FROM drivers WHERE id = $1`, id).
		Scan(&d.ID, &d.Name, &d.VehicleNumber, &d.Loc.Lat, &d.Loc.Lon, &status, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return models.Driver{}, ErrNotFound
	}
	if err != nil {
		return models.Driver{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	d.Status = models.DriverStatus(status)
	return d, nil
}

func (s *pgDriverStore) Put(ctx context.Context, d models.Driver) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO drivers (id, name, vehicle_number, lat, lon, status, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO UPDATE SET name=$2, vehicle_number=$3, lat=$4, lon=$5, status=$6, updated_at=$7`,
		d.ID, d.Name, d.VehicleNumber, d.Loc.Lat, d.Loc.Lon, string(d.Status), d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
