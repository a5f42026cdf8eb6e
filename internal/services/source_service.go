package services

import (
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/alertdeck/alertdeck/internal/database"
)

// SourceService manages configured monitoring backend instances
type SourceService struct {
	db *gorm.DB
}

// NewSourceService creates a source service over the given database
func NewSourceService(db *gorm.DB) *SourceService {
	return &SourceService{db: db}
}

// List returns all configured sources in canonical order
func (s *SourceService) List() ([]database.SourceConfig, error) {
	return s.list(s.db)
}

// ListEnabled returns only the sources the orchestrator should poll
func (s *SourceService) ListEnabled() ([]database.SourceConfig, error) {
	return s.list(s.db.Where("enabled = ?", true))
}

func (s *SourceService) list(q *gorm.DB) ([]database.SourceConfig, error) {
	var sources []database.SourceConfig
	if err := q.Order("type asc, id asc").Find(&sources).Error; err != nil {
		return nil, err
	}
	return sources, nil
}

// Get retrieves a source by UUID
func (s *SourceService) Get(sourceUUID string) (*database.SourceConfig, error) {
	var src database.SourceConfig
	if err := s.db.Where("uuid = ?", sourceUUID).First(&src).Error; err != nil {
		return nil, err
	}
	return &src, nil
}

// Create validates and persists a new source configuration
func (s *SourceService) Create(src *database.SourceConfig) (*database.SourceConfig, error) {
	if err := validateSource(src); err != nil {
		return nil, err
	}
	src.UUID = uuid.New().String()
	if err := s.db.Create(src).Error; err != nil {
		return nil, err
	}
	return src, nil
}

// Update replaces the mutable fields of an existing source
func (s *SourceService) Update(sourceUUID string, updated *database.SourceConfig) (*database.SourceConfig, error) {
	if err := validateSource(updated); err != nil {
		return nil, err
	}

	src, err := s.Get(sourceUUID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"name":      updated.Name,
		"url":       updated.URL,
		"auth_mode": updated.AuthMode,
		"username":  updated.Username,
		"mode":      updated.Mode,
		"slug":      updated.Slug,
		"enabled":   updated.Enabled,
	}
	// Blank secrets mean "keep the stored value"
	if updated.Password != "" {
		updates["password"] = updated.Password
	}
	if updated.Token != "" {
		updates["token"] = updated.Token
	}

	if err := s.db.Model(src).Updates(updates).Error; err != nil {
		return nil, err
	}
	return s.Get(sourceUUID)
}

// Delete removes a source configuration by UUID
func (s *SourceService) Delete(sourceUUID string) error {
	return s.db.Where("uuid = ?", sourceUUID).Delete(&database.SourceConfig{}).Error
}

func validateSource(src *database.SourceConfig) error {
	valid := false
	for _, t := range database.ValidSourceTypes() {
		if src.Type == t {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("unknown source type %q", src.Type)
	}
	if src.Name == "" {
		return fmt.Errorf("source name is required")
	}
	if src.URL == "" {
		return fmt.Errorf("source URL is required")
	}
	return nil
}

// ========== YAML seed file ==========

// seedFile is the shape of an optional sources YAML file loaded at startup
type seedFile struct {
	RefreshIntervalSeconds int          `yaml:"refresh_interval_seconds"`
	Sources                []seedSource `yaml:"sources"`
}

type seedSource struct {
	Type     string `yaml:"type"`
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	AuthMode string `yaml:"auth_mode"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Token    string `yaml:"token"`
	Mode     string `yaml:"mode"`
	Slug     string `yaml:"slug"`
	Disabled bool   `yaml:"disabled"`
}

// ImportFile seeds source configurations and settings from a YAML file.
// Existing sources are matched by (type, name) and updated in place so the
// file can be re-applied on every start.
func (s *SourceService) ImportFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read sources file: %w", err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("failed to parse sources file: %w", err)
	}

	if seed.RefreshIntervalSeconds > 0 {
		settings, err := database.GetOrCreateAppSettings(s.db)
		if err != nil {
			return err
		}
		settings.RefreshIntervalSeconds = seed.RefreshIntervalSeconds
		if err := database.UpdateAppSettings(s.db, settings); err != nil {
			return err
		}
	}

	for _, entry := range seed.Sources {
		src := database.SourceConfig{
			Type:     database.SourceTypeName(entry.Type),
			Name:     entry.Name,
			URL:      entry.URL,
			AuthMode: entry.AuthMode,
			Username: entry.Username,
			Password: entry.Password,
			Token:    entry.Token,
			Mode:     entry.Mode,
			Slug:     entry.Slug,
			Enabled:  !entry.Disabled,
		}
		if err := validateSource(&src); err != nil {
			log.Printf("Skipping invalid source %q in %s: %v", entry.Name, path, err)
			continue
		}

		var existing database.SourceConfig
		err := s.db.Where("type = ? AND name = ?", src.Type, src.Name).First(&existing).Error
		if err == gorm.ErrRecordNotFound {
			src.UUID = uuid.New().String()
			if err := s.db.Create(&src).Error; err != nil {
				return fmt.Errorf("failed to create source %q: %w", src.Name, err)
			}
			log.Printf("Seeded source %s (%s)", src.Type, src.Name)
			continue
		}
		if err != nil {
			return err
		}

		src.ID = existing.ID
		src.UUID = existing.UUID
		if err := s.db.Save(&src).Error; err != nil {
			return fmt.Errorf("failed to update source %q: %w", src.Name, err)
		}
	}

	return nil
}
