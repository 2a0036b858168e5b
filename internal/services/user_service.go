package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"obogportal/internal/models"
	"obogportal/internal/pdf"
	"obogportal/internal/repositories"
)

const (
	debugListLimit = 100
	rosterPageSize = 500
)

// DebugSnapshot is the admin-only dump of the auth tables.
type DebugSnapshot struct {
	Users    []*models.User    `json:"users"`
	Profiles []*models.Profile `json:"profiles"`
	OTPLogs  []*models.OTPLog  `json:"otp_logs"`
}

type UserService interface {
	DebugSnapshot(ctx context.Context) (*DebugSnapshot, error)
	WriteRosterPDF(ctx context.Context, w io.Writer, generatedBy string) error
}

type userService struct {
	users    repositories.UserRepository
	profiles repositories.ProfileRepository
	logs     repositories.OTPLogRepository
	pdfGen   pdf.Generator
	logger   *zap.Logger
	now      func() time.Time
}

func NewUserService(repos *repositories.Repositories, pdfGen pdf.Generator, logger *zap.Logger) UserService {
	return &userService{
		users:    repos.Users,
		profiles: repos.Profiles,
		logs:     repos.OTPLogs,
		pdfGen:   pdfGen,
		logger:   logger.Named("users"),
		now:      time.Now,
	}
}

func (s *userService) DebugSnapshot(ctx context.Context) (*DebugSnapshot, error) {
	users, err := s.users.List(ctx, debugListLimit, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	profiles, err := s.profiles.List(ctx, debugListLimit, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	logs, err := s.logs.ListRecent(ctx, debugListLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	snap := &DebugSnapshot{Users: users, Profiles: profiles, OTPLogs: logs}
	if snap.Users == nil {
		snap.Users = []*models.User{}
	}
	if snap.Profiles == nil {
		snap.Profiles = []*models.Profile{}
	}
	if snap.OTPLogs == nil {
		snap.OTPLogs = []*models.OTPLog{}
	}
	return snap, nil
}

// WriteRosterPDF renders every user, enriched with profile data where a profile exists.
func (s *userService) WriteRosterPDF(ctx context.Context, w io.Writer, generatedBy string) error {
	var rows []pdf.RosterRow
	for offset := 0; ; offset += rosterPageSize {
		users, err := s.users.List(ctx, rosterPageSize, offset)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUpstream, err)
		}
		for _, u := range users {
			row := pdf.RosterRow{Email: u.Email, Role: u.Role, CreatedAt: u.CreatedAt}
			p, err := s.profiles.GetByUserID(ctx, u.ID)
			switch {
			case err == nil:
				row.DisplayName = p.DisplayName
				row.GraduationYear = p.GraduationYear
				row.Department = p.Department
			case !errors.Is(err, repositories.ErrNotFound):
				s.logger.Warn("roster profile lookup failed", zap.String("user_id", u.ID), zap.Error(err))
			}
			rows = append(rows, row)
		}
		if len(users) < rosterPageSize {
			break
		}
	}

	return s.pdfGen.Roster(w, pdf.RosterData{
		GeneratedAt: s.now(),
		GeneratedBy: generatedBy,
		Rows:        rows,
	})
}
