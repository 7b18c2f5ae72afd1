// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/danielhkuo/municipal-results/auth"
	"github.com/danielhkuo/municipal-results/db"
	"github.com/danielhkuo/municipal-results/models"
)

// CenterFilter narrows ListCenters. Empty fields do not filter.
type CenterFilter struct {
	NeighborhoodID string
	WardID         string
}

func (s *Service) getUser(ctx context.Context, q querier, id string) (models.User, error) {
	var u models.User
	err := q.QueryRowContext(ctx, `
		SELECT id, full_name, email, role, ward_id, center_id FROM app_user WHERE id = $1
	`, id).Scan(&u.ID, &u.FullName, &u.Email, &u.Role, &u.WardID, &u.CenterID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, newError(CodeNotFound, "user %s not found", id)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("failed to query user: %w", err)
	}
	return u, nil
}

// GetUser returns a registered operator.
func (s *Service) GetUser(ctx context.Context, id string) (models.User, error) {
	return s.getUser(ctx, s.db, id)
}

// CreateUser registers an operator. Supervisors need a ward, agents a center.
func (s *Service) CreateUser(ctx context.Context, u models.User) (models.User, error) {
	if !auth.ValidRole(u.Role) {
		return models.User{}, newError(CodeInvalidInput, "unknown role %q", u.Role)
	}
	if strings.TrimSpace(u.FullName) == "" || strings.TrimSpace(u.Email) == "" {
		return models.User{}, newError(CodeInvalidInput, "full_name and email are required")
	}
	if u.Role == auth.RoleSupervisor && (u.WardID == nil || *u.WardID == "") {
		return models.User{}, newError(CodeInvalidInput, "a supervisor needs a ward_id")
	}
	if u.Role == auth.RoleAgent && (u.CenterID == nil || *u.CenterID == "") {
		return models.User{}, newError(CodeInvalidInput, "an agent needs a center_id")
	}
	if u.ID == "" {
		u.ID = auth.NewID()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_user (id, full_name, email, role, ward_id, center_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, u.ID, u.FullName, strings.ToLower(u.Email), u.Role, u.WardID, u.CenterID, s.now())
	if db.IsUniqueViolation(err) {
		return models.User{}, newError(CodeAlreadyExists, "email %s already registered", u.Email)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("failed to insert user: %w", err)
	}
	return s.getUser(ctx, s.db, u.ID)
}

// CreateCenter adds a polling center under a neighborhood.
func (s *Service) CreateCenter(ctx context.Context, who auth.Identity, neighborhoodID, name string, declaredStations int) (c models.PollingCenter, err error) {
	defer s.observe("center", "create", &err)

	if err := requireRole(who, auth.RoleSuperAdmin); err != nil {
		return models.PollingCenter{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" || neighborhoodID == "" {
		return models.PollingCenter{}, newError(CodeInvalidInput, "neighborhood_id and name are required")
	}
	if declaredStations < 0 {
		return models.PollingCenter{}, newError(CodeInvalidInput, "declared_stations must not be negative")
	}

	var found string
	err = s.db.QueryRowContext(ctx, `SELECT id FROM neighborhood WHERE id = $1`, neighborhoodID).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PollingCenter{}, newError(CodeNotFound, "neighborhood %s not found", neighborhoodID)
	}
	if err != nil {
		return models.PollingCenter{}, fmt.Errorf("failed to query neighborhood: %w", err)
	}

	c = models.PollingCenter{
		ID:               auth.NewID(),
		NeighborhoodID:   neighborhoodID,
		Name:             name,
		DeclaredStations: declaredStations,
		CreatedAt:        s.now(),
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO polling_center (id, neighborhood_id, name, declared_stations, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, c.ID, c.NeighborhoodID, c.Name, c.DeclaredStations, c.CreatedAt)
	if err != nil {
		return models.PollingCenter{}, fmt.Errorf("failed to insert polling center: %w", err)
	}

	slog.Info("polling center created", "center_id", c.ID, "neighborhood_id", neighborhoodID)
	return c, nil
}

// CreateStation adds a polling station to a center. Numbers are unique per center;
// the label defaults to "Bureau <number>".
func (s *Service) CreateStation(ctx context.Context, who auth.Identity, centerID string, number int, label string) (st models.PollingStation, err error) {
	defer s.observe("station", "create", &err)

	if err := requireRole(who, auth.RoleSuperAdmin); err != nil {
		return models.PollingStation{}, err
	}
	if number <= 0 {
		return models.PollingStation{}, newError(CodeInvalidInput, "number must be positive")
	}
	if _, err := s.lookupCenter(ctx, s.db, centerID); err != nil {
		return models.PollingStation{}, err
	}
	label = strings.TrimSpace(label)
	if label == "" {
		label = fmt.Sprintf("Bureau %d", number)
	}

	st = models.PollingStation{
		ID:        auth.NewID(),
		CenterID:  centerID,
		Number:    number,
		Label:     label,
		CreatedAt: s.now(),
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO polling_station (id, center_id, number, label, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, st.ID, st.CenterID, st.Number, st.Label, st.CreatedAt)
	if db.IsUniqueViolation(err) {
		return models.PollingStation{}, newError(CodeAlreadyExists, "station number %d already exists in center %s", number, centerID)
	}
	if err != nil {
		return models.PollingStation{}, fmt.Errorf("failed to insert polling station: %w", err)
	}

	slog.Info("polling station created", "station_id", st.ID, "center_id", centerID, "number", number)
	return st, nil
}

// GetCenter returns a center, the geography chain above it, and its stations.
func (s *Service) GetCenter(ctx context.Context, id string) (models.CenterWithLineage, error) {
	var out models.CenterWithLineage
	c, l := &out.Center, &out.Lineage
	err := s.db.QueryRowContext(ctx, `
		SELECT pc.id, pc.neighborhood_id, pc.name, pc.declared_stations, pc.created_at,
		       n.name, w.id, w.name, d.id, d.name, cm.id, cm.name, dp.id, dp.name
		FROM polling_center pc
		JOIN neighborhood n ON n.id = pc.neighborhood_id
		JOIN ward w ON w.id = n.ward_id
		JOIN district d ON d.id = w.district_id
		JOIN commune cm ON cm.id = d.commune_id
		JOIN department dp ON dp.id = cm.department_id
		WHERE pc.id = $1
	`, id).Scan(
		&c.ID, &c.NeighborhoodID, &c.Name, &c.DeclaredStations, &c.CreatedAt,
		&l.NeighborhoodName, &l.WardID, &l.WardName, &l.DistrictID, &l.DistrictName,
		&l.CommuneID, &l.CommuneName, &l.DepartmentID, &l.DepartmentName,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.CenterWithLineage{}, newError(CodeNotFound, "polling center %s not found", id)
	}
	if err != nil {
		return models.CenterWithLineage{}, fmt.Errorf("failed to query polling center: %w", err)
	}
	l.CenterID, l.CenterName, l.NeighborhoodID = c.ID, c.Name, c.NeighborhoodID

	out.Stations, err = s.ListStations(ctx, id)
	if err != nil {
		return models.CenterWithLineage{}, err
	}
	return out, nil
}

// ListCenters returns polling centers ordered by name.
func (s *Service) ListCenters(ctx context.Context, f CenterFilter) ([]models.PollingCenter, error) {
	var w db.Where
	w.AddIf("pc.neighborhood_id = ?", f.NeighborhoodID)
	w.AddIf("n.ward_id = ?", f.WardID)

	rows, err := s.db.QueryContext(ctx, `
		SELECT pc.id, pc.neighborhood_id, pc.name, pc.declared_stations, pc.created_at
		FROM polling_center pc
		JOIN neighborhood n ON n.id = pc.neighborhood_id`+w.String()+`
		ORDER BY pc.name, pc.id
	`, w.Args()...)
	if err != nil {
		return nil, fmt.Errorf("failed to query polling centers: %w", err)
	}
	defer rows.Close()

	centers := []models.PollingCenter{}
	for rows.Next() {
		var c models.PollingCenter
		if err := rows.Scan(&c.ID, &c.NeighborhoodID, &c.Name, &c.DeclaredStations, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan polling center: %w", err)
		}
		centers = append(centers, c)
	}
	return centers, rows.Err()
}

func (s *Service) GetStation(ctx context.Context, id string) (models.PollingStation, error) {
	var st models.PollingStation
	err := s.db.QueryRowContext(ctx, `
		SELECT id, center_id, number, label, created_at FROM polling_station WHERE id = $1
	`, id).Scan(&st.ID, &st.CenterID, &st.Number, &st.Label, &st.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PollingStation{}, newError(CodeNotFound, "polling station %s not found", id)
	}
	if err != nil {
		return models.PollingStation{}, fmt.Errorf("failed to query polling station: %w", err)
	}
	return st, nil
}

// ListStations returns stations ordered by center and number. centerID may be empty.
func (s *Service) ListStations(ctx context.Context, centerID string) ([]models.PollingStation, error) {
	var w db.Where
	w.AddIf("center_id = ?", centerID)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, center_id, number, label, created_at FROM polling_station`+w.String()+`
		ORDER BY center_id, number
	`, w.Args()...)
	if err != nil {
		return nil, fmt.Errorf("failed to query polling stations: %w", err)
	}
	defer rows.Close()

	stations := []models.PollingStation{}
	for rows.Next() {
		var st models.PollingStation
		if err := rows.Scan(&st.ID, &st.CenterID, &st.Number, &st.Label, &st.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan polling station: %w", err)
		}
		stations = append(stations, st)
	}
	return stations, rows.Err()
}
