package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/harrisonrobin/effitime/pkg/biorhythm"
	"github.com/harrisonrobin/effitime/pkg/model"
)

// SleepSettings returns the user's stored sleep schedule, or defaults with
// UserID filled in when none was saved.
func (s *Store) SleepSettings(ctx context.Context, userID string, defaults model.SleepSettings) (model.SleepSettings, error) {
	if err := s.check("sleep settings"); err != nil {
		return model.SleepSettings{}, err
	}
	out := model.SleepSettings{UserID: userID}
	err := s.db.QueryRowContext(ctx, `SELECT wake_up_time, bed_time FROM sleep_settings WHERE user_id = ?`, userID).
		Scan(&out.WakeUp, &out.BedTime)
	if errors.Is(err, sql.ErrNoRows) {
		defaults.UserID = userID
		return defaults, nil
	}
	if err != nil {
		return model.SleepSettings{}, fmt.Errorf("sleep settings: scan: %w", err)
	}
	return out, nil
}

// SetSleepSettings validates and saves a user's sleep schedule.
func (s *Store) SetSleepSettings(ctx context.Context, settings model.SleepSettings) error {
	if err := s.check("set sleep settings"); err != nil {
		return err
	}
	if settings.UserID == "" {
		return fmt.Errorf("set sleep settings: user id is empty")
	}
	wake, err := biorhythm.ParseClock(settings.WakeUp)
	if err != nil {
		return fmt.Errorf("set sleep settings: wake up: %w", err)
	}
	bed, err := biorhythm.ParseClock(settings.BedTime)
	if err != nil {
		return fmt.Errorf("set sleep settings: bed time: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO sleep_settings (user_id, wake_up_time, bed_time) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET wake_up_time = excluded.wake_up_time, bed_time = excluded.bed_time`,
		settings.UserID, wake.String(), bed.String())
	if err != nil {
		return fmt.Errorf("set sleep settings: upsert: %w", err)
	}
	return nil
}
