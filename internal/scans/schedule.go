package scans

import (
	"errors"
	"fmt"
	"strings"
	"time"

	gocron "github.com/go-co-op/gocron/v2"
	"github.com/robfig/cron/v3"

	"github.com/hashnet666/hydra-scanner-backend/internal/model"
)

// ParseCron parses a cron expression that has 5 fields,
// returns an error if it fails.
func ParseCron(expr string) error {
	e := strings.TrimSpace(expr)
	if e == "" {
		return fmt.Errorf("empty cron expression")
	}

	// Macros / @every handled by ParseStandard (it also supports plain 5-field specs).
	if strings.HasPrefix(e, "@") {
		_, err := cron.ParseStandard(e)
		return err
	}

	parser5 := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

	// len == 5
	_, err := parser5.Parse(e)
	return err
}

// scheduleJob turns the reaper config into a gocron job definition.
// A cron expression wins over the plain period when both are given.
func scheduleJob(cfg model.Reaper) (gocron.JobDefinition, error) {
	switch {
	case cfg.Cron != "":
		if err := ParseCron(cfg.Cron); err != nil {
			return nil, fmt.Errorf("parsing reaper.cron: %w", err)
		}
		return gocron.CronJob(cfg.Cron, false), nil
	case cfg.Every != "":
		d, err := time.ParseDuration(string(cfg.Every))
		if err != nil {
			return nil, fmt.Errorf("parsing reaper.every: %w", err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("reaper.every must be positive, got %s", d)
		}
		return gocron.DurationJob(d), nil
	default:
		return nil, errors.New("both cron and every are empty")
	}
}
