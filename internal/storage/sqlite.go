package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/douuvid/Datagouv/internal/domain"
)

// gorm row types. Kept separate from the domain types so schema concerns
// (column names, serialized JSON blobs) stay out of the domain package.

type userConfigRow struct {
	ID              int `gorm:"primarykey"`
	FirstName       string
	LastName        string
	Email           string
	Phone           string
	Message         string
	CVPath          *string
	CoverLetterPath *string
	SearchKeywords  string
	SearchLocation  string
	JobTypes        string
	ContractTypes   string
	EducationLevel  string
	SearchRadius    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (userConfigRow) TableName() string { return "user_configs" }

type settingsRow struct {
	ID                        int `gorm:"primarykey"`
	DelayBetweenApplications  int
	MaxApplicationsPerSession int
	AutoFillForm              bool
	AutoSendApplication       bool
	PauseBeforeSend           bool
	CaptureScreenshots        bool
	CreatedAt                 time.Time
	UpdatedAt                 time.Time
}

func (settingsRow) TableName() string { return "automation_settings" }

type sessionRow struct {
	ID                     int `gorm:"primarykey"`
	Status                 string
	StartedAt              time.Time
	EndedAt                *time.Time
	TotalApplications      int
	SuccessfulApplications int
	FailedApplications     int
	UserConfigID           int
	SettingsJSON           string
}

func (sessionRow) TableName() string { return "automation_sessions" }

type applicationRow struct {
	ID             int `gorm:"primarykey"`
	SessionID      int `gorm:"index"`
	JobTitle       string
	Company        string
	Location       string
	Status         string
	ErrorMessage   *string
	AppliedAt      time.Time
	ScreenshotPath *string
}

func (applicationRow) TableName() string { return "applications" }

type logRow struct {
	ID           int `gorm:"primarykey"`
	SessionID    int `gorm:"index"`
	Level        string
	Message      string
	Timestamp    time.Time
	MetadataJSON string
}

func (logRow) TableName() string { return "automation_logs" }

type screenshotRow struct {
	ID            int `gorm:"primarykey"`
	SessionID     int `gorm:"index"`
	ApplicationID *int
	FilePath      string
	Description   string
	CapturedAt    time.Time
}

func (screenshotRow) TableName() string { return "screenshots" }

// SQLiteStore is a durable domain.Store backed by an embedded SQLite file.
type SQLiteStore struct {
	db *gorm.DB
}

// OpenSQLite opens (creating if needed) the database at path and migrates
// the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(
		&userConfigRow{},
		&settingsRow{},
		&sessionRow{},
		&applicationRow{},
		&logRow{},
		&screenshotRow{},
	); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying connection.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// --- UserConfig ---

func (s *SQLiteStore) GetUserConfig(ctx context.Context) (*domain.UserConfig, error) {
	var row userConfigRow
	err := s.db.WithContext(ctx).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrUserConfigNotFound
	}
	if err != nil {
		return nil, err
	}
	cfg := userConfigFromRow(row)
	return &cfg, nil
}

func (s *SQLiteStore) CreateUserConfig(ctx context.Context, cfg domain.UserConfig) (*domain.UserConfig, error) {
	row := userConfigToRow(cfg)
	row.ID = 0
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, err
	}
	out := userConfigFromRow(row)
	return &out, nil
}

func (s *SQLiteStore) ReplaceUserConfig(ctx context.Context, cfg domain.UserConfig) (*domain.UserConfig, error) {
	var existing userConfigRow
	err := s.db.WithContext(ctx).First(&existing).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	row := userConfigToRow(cfg)
	if err == nil {
		row.ID = existing.ID
		row.CreatedAt = existing.CreatedAt
	}
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return nil, err
	}
	out := userConfigFromRow(row)
	return &out, nil
}

func (s *SQLiteStore) UpdateUserConfig(ctx context.Context, patch domain.UserConfigPatch) (*domain.UserConfig, error) {
	var row userConfigRow
	err := s.db.WithContext(ctx).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrUserConfigNotFound
	}
	if err != nil {
		return nil, err
	}

	if patch.CVPath != nil {
		row.CVPath = patch.CVPath
	}
	if patch.CoverLetterPath != nil {
		row.CoverLetterPath = patch.CoverLetterPath
	}
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return nil, err
	}
	out := userConfigFromRow(row)
	return &out, nil
}

// --- Settings ---

func (s *SQLiteStore) GetSettings(ctx context.Context) (*domain.Settings, error) {
	var row settingsRow
	err := s.db.WithContext(ctx).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrSettingsNotFound
	}
	if err != nil {
		return nil, err
	}
	out := settingsFromRow(row)
	return &out, nil
}

func (s *SQLiteStore) CreateSettings(ctx context.Context, st domain.Settings) (*domain.Settings, error) {
	row := settingsToRow(st)
	row.ID = 0
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, err
	}
	out := settingsFromRow(row)
	return &out, nil
}

func (s *SQLiteStore) UpdateSettings(ctx context.Context, st domain.Settings) (*domain.Settings, error) {
	var existing settingsRow
	err := s.db.WithContext(ctx).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrSettingsNotFound
	}
	if err != nil {
		return nil, err
	}

	row := settingsToRow(st)
	row.ID = existing.ID
	row.CreatedAt = existing.CreatedAt
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return nil, err
	}
	out := settingsFromRow(row)
	return &out, nil
}

// --- Sessions ---

func (s *SQLiteStore) ListSessions(ctx context.Context) ([]domain.Session, error) {
	var rows []sessionRow
	if err := s.db.WithContext(ctx).Order("started_at desc").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Session, 0, len(rows))
	for _, r := range rows {
		out = append(out, sessionFromRow(r))
	}
	return out, nil
}

func (s *SQLiteStore) GetCurrentSession(ctx context.Context) (*domain.Session, error) {
	var row sessionRow
	err := s.db.WithContext(ctx).
		Where("status IN ?", []string{string(domain.SessionRunning), string(domain.SessionPaused)}).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	out := sessionFromRow(row)
	return &out, nil
}

func (s *SQLiteStore) CreateSession(ctx context.Context, sess domain.Session) (*domain.Session, error) {
	row, err := sessionToRow(sess)
	if err != nil {
		return nil, err
	}
	row.ID = 0
	if row.StartedAt.IsZero() {
		row.StartedAt = time.Now()
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, err
	}
	out := sessionFromRow(row)
	return &out, nil
}

func (s *SQLiteStore) UpdateSession(ctx context.Context, id int, patch domain.SessionPatch) (*domain.Session, error) {
	var row sessionRow
	err := s.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	if patch.Status != nil {
		row.Status = string(*patch.Status)
	}
	if patch.EndedAt != nil {
		row.EndedAt = patch.EndedAt
	}
	if patch.TotalApplications != nil {
		row.TotalApplications = *patch.TotalApplications
	}
	if patch.SuccessfulApplications != nil {
		row.SuccessfulApplications = *patch.SuccessfulApplications
	}
	if patch.FailedApplications != nil {
		row.FailedApplications = *patch.FailedApplications
	}
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return nil, err
	}
	out := sessionFromRow(row)
	return &out, nil
}

// --- Applications ---

func (s *SQLiteStore) ListApplications(ctx context.Context, sessionID *int) ([]domain.Application, error) {
	q := s.db.WithContext(ctx).Order("id asc")
	if sessionID != nil {
		q = q.Where("session_id = ?", *sessionID)
	}
	var rows []applicationRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Application, 0, len(rows))
	for _, r := range rows {
		out = append(out, applicationFromRow(r))
	}
	return out, nil
}

func (s *SQLiteStore) CreateApplication(ctx context.Context, a domain.Application) (*domain.Application, error) {
	row := applicationRow{
		SessionID:      a.SessionID,
		JobTitle:       a.JobTitle,
		Company:        a.Company,
		Location:       a.Location,
		Status:         string(a.Status),
		ErrorMessage:   a.ErrorMessage,
		AppliedAt:      a.AppliedAt,
		ScreenshotPath: a.ScreenshotPath,
	}
	if row.AppliedAt.IsZero() {
		row.AppliedAt = time.Now()
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, err
	}
	out := applicationFromRow(row)
	return &out, nil
}

func (s *SQLiteStore) UpdateApplication(ctx context.Context, id int, patch domain.ApplicationPatch) (*domain.Application, error) {
	var row applicationRow
	err := s.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}

	if patch.Status != nil {
		row.Status = string(*patch.Status)
	}
	if patch.ErrorMessage != nil {
		row.ErrorMessage = patch.ErrorMessage
	}
	if patch.ScreenshotPath != nil {
		row.ScreenshotPath = patch.ScreenshotPath
	}
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return nil, err
	}
	out := applicationFromRow(row)
	return &out, nil
}

// --- Logs ---

func (s *SQLiteStore) ListLogs(ctx context.Context, sessionID *int) ([]domain.LogEntry, error) {
	q := s.db.WithContext(ctx).Order("id asc")
	if sessionID != nil {
		q = q.Where("session_id = ?", *sessionID)
	}
	var rows []logRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.LogEntry, 0, len(rows))
	for _, r := range rows {
		e, err := logFromRow(r)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *SQLiteStore) CreateLog(ctx context.Context, e domain.LogEntry) (*domain.LogEntry, error) {
	meta := "{}"
	if e.Metadata != nil {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize log metadata: %w", err)
		}
		meta = string(b)
	}
	row := logRow{
		SessionID:    e.SessionID,
		Level:        string(e.Level),
		Message:      e.Message,
		Timestamp:    e.Timestamp,
		MetadataJSON: meta,
	}
	if row.Timestamp.IsZero() {
		row.Timestamp = time.Now()
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, err
	}
	out, err := logFromRow(row)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *SQLiteStore) ClearLogs(ctx context.Context, sessionID *int) error {
	q := s.db.WithContext(ctx)
	if sessionID != nil {
		q = q.Where("session_id = ?", *sessionID)
	} else {
		q = q.Where("1 = 1")
	}
	return q.Delete(&logRow{}).Error
}

// --- Screenshots ---

func (s *SQLiteStore) ListScreenshots(ctx context.Context, sessionID *int) ([]domain.Screenshot, error) {
	q := s.db.WithContext(ctx).Order("id asc")
	if sessionID != nil {
		q = q.Where("session_id = ?", *sessionID)
	}
	var rows []screenshotRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Screenshot, 0, len(rows))
	for _, r := range rows {
		out = append(out, screenshotFromRow(r))
	}
	return out, nil
}

func (s *SQLiteStore) CreateScreenshot(ctx context.Context, sc domain.Screenshot) (*domain.Screenshot, error) {
	row := screenshotRow{
		SessionID:     sc.SessionID,
		ApplicationID: sc.ApplicationID,
		FilePath:      sc.FilePath,
		Description:   sc.Description,
		CapturedAt:    sc.CapturedAt,
	}
	if row.CapturedAt.IsZero() {
		row.CapturedAt = time.Now()
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, err
	}
	out := screenshotFromRow(row)
	return &out, nil
}

// --- row conversions ---

func userConfigToRow(cfg domain.UserConfig) userConfigRow {
	return userConfigRow{
		ID:              cfg.ID,
		FirstName:       cfg.FirstName,
		LastName:        cfg.LastName,
		Email:           cfg.Email,
		Phone:           cfg.Phone,
		Message:         cfg.Message,
		CVPath:          cfg.CVPath,
		CoverLetterPath: cfg.CoverLetterPath,
		SearchKeywords:  cfg.SearchKeywords,
		SearchLocation:  cfg.SearchLocation,
		JobTypes:        cfg.JobTypes,
		ContractTypes:   cfg.ContractTypes,
		EducationLevel:  cfg.EducationLevel,
		SearchRadius:    cfg.SearchRadius,
		CreatedAt:       cfg.CreatedAt,
		UpdatedAt:       cfg.UpdatedAt,
	}
}

func userConfigFromRow(row userConfigRow) domain.UserConfig {
	return domain.UserConfig{
		ID:              row.ID,
		FirstName:       row.FirstName,
		LastName:        row.LastName,
		Email:           row.Email,
		Phone:           row.Phone,
		Message:         row.Message,
		CVPath:          row.CVPath,
		CoverLetterPath: row.CoverLetterPath,
		SearchKeywords:  row.SearchKeywords,
		SearchLocation:  row.SearchLocation,
		JobTypes:        row.JobTypes,
		ContractTypes:   row.ContractTypes,
		EducationLevel:  row.EducationLevel,
		SearchRadius:    row.SearchRadius,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
}

func settingsToRow(st domain.Settings) settingsRow {
	return settingsRow{
		ID:                        st.ID,
		DelayBetweenApplications:  st.DelayBetweenApplications,
		MaxApplicationsPerSession: st.MaxApplicationsPerSession,
		AutoFillForm:              st.AutoFillForm,
		AutoSendApplication:       st.AutoSendApplication,
		PauseBeforeSend:           st.PauseBeforeSend,
		CaptureScreenshots:        st.CaptureScreenshots,
		CreatedAt:                 st.CreatedAt,
		UpdatedAt:                 st.UpdatedAt,
	}
}

func settingsFromRow(row settingsRow) domain.Settings {
	return domain.Settings{
		ID:                        row.ID,
		DelayBetweenApplications:  row.DelayBetweenApplications,
		MaxApplicationsPerSession: row.MaxApplicationsPerSession,
		AutoFillForm:              row.AutoFillForm,
		AutoSendApplication:       row.AutoSendApplication,
		PauseBeforeSend:           row.PauseBeforeSend,
		CaptureScreenshots:        row.CaptureScreenshots,
		CreatedAt:                 row.CreatedAt,
		UpdatedAt:                 row.UpdatedAt,
	}
}

func sessionToRow(sess domain.Session) (sessionRow, error) {
	settingsJSON, err := json.Marshal(sess.Settings)
	if err != nil {
		return sessionRow{}, fmt.Errorf("failed to serialize settings snapshot: %w", err)
	}
	return sessionRow{
		ID:                     sess.ID,
		Status:                 string(sess.Status),
		StartedAt:              sess.StartedAt,
		EndedAt:                sess.EndedAt,
		TotalApplications:      sess.TotalApplications,
		SuccessfulApplications: sess.SuccessfulApplications,
		FailedApplications:     sess.FailedApplications,
		UserConfigID:           sess.UserConfigID,
		SettingsJSON:           string(settingsJSON),
	}, nil
}

func sessionFromRow(row sessionRow) domain.Session {
	var settings domain.Settings
	// Best effort: a corrupted snapshot should not make history unreadable.
	_ = json.Unmarshal([]byte(row.SettingsJSON), &settings)
	return domain.Session{
		ID:                     row.ID,
		Status:                 domain.SessionStatus(row.Status),
		StartedAt:              row.StartedAt,
		EndedAt:                row.EndedAt,
		TotalApplications:      row.TotalApplications,
		SuccessfulApplications: row.SuccessfulApplications,
		FailedApplications:     row.FailedApplications,
		UserConfigID:           row.UserConfigID,
		Settings:               settings,
	}
}

func applicationFromRow(row applicationRow) domain.Application {
	return domain.Application{
		ID:             row.ID,
		SessionID:      row.SessionID,
		JobTitle:       row.JobTitle,
		Company:        row.Company,
		Location:       row.Location,
		Status:         domain.ApplicationStatus(row.Status),
		ErrorMessage:   row.ErrorMessage,
		AppliedAt:      row.AppliedAt,
		ScreenshotPath: row.ScreenshotPath,
	}
}

func logFromRow(row logRow) (domain.LogEntry, error) {
	var meta map[string]any
	if row.MetadataJSON != "" {
		if err := json.Unmarshal([]byte(row.MetadataJSON), &meta); err != nil {
			return domain.LogEntry{}, fmt.Errorf("failed to parse log metadata: %w", err)
		}
	}
	return domain.LogEntry{
		ID:        row.ID,
		SessionID: row.SessionID,
		Level:     domain.LogLevel(row.Level),
		Message:   row.Message,
		Timestamp: row.Timestamp,
		Metadata:  meta,
	}, nil
}

func screenshotFromRow(row screenshotRow) domain.Screenshot {
	return domain.Screenshot{
		ID:            row.ID,
		SessionID:     row.SessionID,
		ApplicationID: row.ApplicationID,
		FilePath:      row.FilePath,
		Description:   row.Description,
		CapturedAt:    row.CapturedAt,
	}
}
