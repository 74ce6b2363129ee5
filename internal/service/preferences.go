package service

import (
	"context"
	"errors"

	"socialsync/internal/logger"
	"socialsync/internal/model"
	"socialsync/internal/persist"
)

// PreferencesService reads and writes the theme preference. It survives
// logout.
type PreferencesService struct {
	state persist.Store
}

func NewPreferencesService(state persist.Store) *PreferencesService {
	return &PreferencesService{state: state}
}

// Theme returns the saved theme, defaulting to "system".
func (s *PreferencesService) Theme(ctx context.Context) (string, error) {
	theme, err := s.state.LoadTheme(ctx)
	if errors.Is(err, persist.ErrNotFound) || (err == nil && !model.ValidTheme(theme)) {
		return model.ThemeSystem, nil
	}
	if err != nil {
		return "", err
	}
	return theme, nil
}

// SetTheme validates and saves the theme.
func (s *PreferencesService) SetTheme(ctx context.Context, theme string) error {
	if !model.ValidTheme(theme) {
		return model.ErrInvalidTheme
	}
	if err := s.state.SaveTheme(ctx, theme); err != nil {
		logger.Warnf("[PreferencesService] SetTheme FAILED: theme=%s err=%v", theme, err)
		return err
	}
	logger.Infof("[PreferencesService] SetTheme OK: theme=%s", theme)
	return nil
}
