package postgresadapter

import (
	"context"
	"errors"
	"strings"

	"oxsubstrate/contexts/substrate/sponsor-engine/ports"

	"gorm.io/gorm"
)

type environmentStateRow struct {
	CognitionAvailability string  `gorm:"column:cognition_availability"`
	ThrottleFactor        float64 `gorm:"column:throttle_factor"`
}

// EnvironmentDirectory implements ports.EnvironmentDirectory as a read-only
// projection of environment-service's table.
type EnvironmentDirectory struct {
	db *gorm.DB
}

// NewEnvironmentDirectory builds an EnvironmentDirectory.
func NewEnvironmentDirectory(db *gorm.DB) *EnvironmentDirectory {
	return &EnvironmentDirectory{db: db}
}

func (d *EnvironmentDirectory) GetEnvironmentView(ctx context.Context, target string) (ports.EnvironmentView, bool, error) {
	var row environmentStateRow
	err := d.db.WithContext(ctx).
		Table("environment_states").
		Where("deployment_target = ?", strings.TrimSpace(target)).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.EnvironmentView{}, false, nil
		}
		return ports.EnvironmentView{}, false, err
	}
	return ports.EnvironmentView{
		CognitionAvailability: row.CognitionAvailability,
		ThrottleFactor:        row.ThrottleFactor,
	}, true, nil
}
