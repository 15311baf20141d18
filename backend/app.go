package main

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/soar/DriveAssist/backend/internal/control"
	"github.com/soar/DriveAssist/backend/internal/profile"
)

// controller is what the tray and websocket clients drive: the loop plus
// profile selection from the store.
type controller struct {
	*control.Loop
	store  *profile.Store
	logger *zap.SugaredLogger
}

// SelectProfile loads name from the store and hands it to the loop.
func (c *controller) SelectProfile(name string) error {
	p, err := c.store.Load(name)
	if err != nil {
		return err
	}
	if err := c.SetProfile(p); err != nil {
		return errors.Wrapf(err, "profile %q", name)
	}
	c.logger.Infow("profile selected", "profile", name)
	return nil
}

func (c *controller) ListProfiles() ([]string, error) {
	return c.store.List()
}

func (c *controller) ActiveProfile() string {
	return c.ProfileName()
}

// onProfileChanged re-applies the active profile when its file is edited.
// A broken edit keeps the running profile.
func (c *controller) onProfileChanged(name string, p profile.Profile, err error) {
	if name != c.ProfileName() {
		return
	}
	if err != nil {
		c.logger.Warnw("edited profile rejected, keeping the running one", "profile", name, "error", err)
		return
	}
	if err := c.SetProfile(p); err != nil {
		c.logger.Warnw("edited profile rejected, keeping the running one", "profile", name, "error", err)
		return
	}
	c.logger.Infow("profile reloaded", "profile", name)
}
