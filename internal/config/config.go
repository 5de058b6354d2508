package config

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Rana718/pharmaseed/internal/compiler"
	"github.com/Rana718/pharmaseed/internal/generator"
	"github.com/Rana718/pharmaseed/internal/logger"
	"github.com/spf13/viper"
)

const EnvPrefix = "POPULATE"

type Config struct {
	Database   Database             `json:"database" mapstructure:"database"`
	Spec       Spec                 `json:"spec" mapstructure:"spec"`
	Batch      int                  `json:"batch" mapstructure:"batch"`
	Dynamic    generator.Dynamic    `json:"dynamic" mapstructure:"dynamic"`
	Vocabulary generator.Vocabulary `json:"vocabulary" mapstructure:"vocabulary"`
	Log        logger.Options       `json:"log" mapstructure:"log"`
}

type Database struct {
	Path   string `json:"path" mapstructure:"path"` // Explicit store file; wins over Glob
	Glob   string `json:"glob" mapstructure:"glob"`
	Driver string `json:"driver" mapstructure:"driver"`
}

type Spec struct {
	Baseline string `json:"baseline" mapstructure:"baseline"`
	Override string `json:"override" mapstructure:"override"`
}

// SetDefaults registers every key so environment variables can override keys that no
// config file mentions.
func SetDefaults(v *viper.Viper) {
	vocab := generator.DefaultVocabulary()

	v.SetDefault("database.path", "")
	v.SetDefault("database.glob", "*.sqlite")
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("spec.baseline", "./populate_config.yml")
	v.SetDefault("spec.override", "./populate_number.yml")
	v.SetDefault("batch", compiler.MaxCompoundSelect)
	v.SetDefault("dynamic.product_id", "")
	v.SetDefault("dynamic.template", generator.DefaultDynamicTemplate)
	v.SetDefault("vocabulary.doctor_record_type", vocab.DoctorRecordType)
	v.SetDefault("vocabulary.pathology_record_type", vocab.PathologyRecordType)
	v.SetDefault("vocabulary.therapist_specialty", vocab.TherapistSpecialty)
	v.SetDefault("vocabulary.medical_organization_record_type_id", vocab.MedicalOrganizationRecordTypeID)
	v.SetDefault("vocabulary.pharmacy_contact_record_type_id", vocab.PharmacyContactRecordTypeID)
	v.SetDefault("vocabulary.pharmacy_subtype", vocab.PharmacySubtype)
	v.SetDefault("vocabulary.status_record_type", vocab.StatusRecordType)
	v.SetDefault("vocabulary.visit_date_column", vocab.VisitDateColumn)
	v.SetDefault("vocabulary.visit_contact_column", vocab.VisitContactColumn)
	v.SetDefault("vocabulary.visit_contact_id_column", vocab.VisitContactIDColumn)
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

func LoadFrom(v *viper.Viper) (*Config, error) {
	var cfg Config

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Database.Glob == "" {
		cfg.Database.Glob = "*.sqlite"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite3"
	}
	if cfg.Spec.Baseline == "" {
		cfg.Spec.Baseline = "./populate_config.yml"
	}
	if cfg.Batch <= 0 || cfg.Batch > compiler.MaxCompoundSelect {
		cfg.Batch = compiler.MaxCompoundSelect
	}
	if cfg.Dynamic.Template == "" {
		cfg.Dynamic.Template = generator.DefaultDynamicTemplate
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	supportedDrivers := []string{"sqlite3", "sqlite"}
	supported := false
	for _, driver := range supportedDrivers {
		if c.Database.Driver == driver {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("unsupported database driver: %s. Supported drivers: %v", c.Database.Driver, supportedDrivers)
	}

	if c.Spec.Baseline == "" {
		return fmt.Errorf("spec.baseline cannot be empty")
	}

	return nil
}

// LocateDatabase returns the configured store path, or the first file in the working
// directory matching the glob.
func (c *Config) LocateDatabase() (string, error) {
	if c.Database.Path != "" {
		return c.Database.Path, nil
	}
	matches, err := filepath.Glob(c.Database.Glob)
	if err != nil {
		return "", fmt.Errorf("invalid database glob %q: %w", c.Database.Glob, err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no database matching %s found", c.Database.Glob)
	}
	sort.Strings(matches)
	return matches[0], nil
}
