package project

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ConfigFileName is the per-project configuration file, kept at the project
// root and safe to gitignore.
const ConfigFileName = ".swiftlens.json"

// MaxConfigFileSize bounds the config file so a corrupt one cannot exhaust
// memory.
const MaxConfigFileSize = 100_000

// Settings are the per-project options read from .swiftlens.json. The file
// may carry keys this version does not know; they are preserved on update.
type Settings struct {
	// MaxFileSizeMB caps the size of Swift files tools will touch.
	MaxFileSizeMB int

	// EnableCrossFile allows reference and definition queries to span files.
	EnableCrossFile bool

	// AutoValidate re-checks edited files after a replace operation.
	AutoValidate bool

	// ExcludeDirectories are directory names skipped during file discovery.
	ExcludeDirectories []string

	// LastIndexBuild is when swift_build_index last succeeded for this
	// project, zero if never.
	LastIndexBuild time.Time
}

// DefaultSettings returns the settings used when no config file exists.
func DefaultSettings() Settings {
	return Settings{
		MaxFileSizeMB:   DefaultMaxFileSizeMB,
		EnableCrossFile: true,
		AutoValidate:    true,
		ExcludeDirectories: []string{
			".git", ".build", "build", "Build", "DerivedData",
			"node_modules", ".svn", ".hg", ".vscode", ".idea",
		},
	}
}

// LoadSettings reads .swiftlens.json from root. A missing file yields the
// defaults; unknown keys are ignored, partial files fill in defaults for
// whatever they omit.
func LoadSettings(root string) (Settings, error) {
	s := DefaultSettings()

	data, err := os.ReadFile(filepath.Join(root, ConfigFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, NewPathError("read config", root, err)
	}
	if len(data) > MaxConfigFileSize {
		return s, NewPathError("read config", root, fmt.Errorf("%w: config exceeds %d bytes", ErrFileTooLarge, MaxConfigFileSize))
	}
	if !gjson.ValidBytes(data) {
		return s, NewPathError("read config", root, fmt.Errorf("malformed JSON"))
	}

	if v := gjson.GetBytes(data, "max_file_size"); v.Exists() {
		if n := int(v.Int()); n > 0 && n <= 100_000 {
			s.MaxFileSizeMB = n
		}
	}
	if v := gjson.GetBytes(data, "enable_cross_file"); v.Exists() {
		s.EnableCrossFile = v.Bool()
	}
	if v := gjson.GetBytes(data, "auto_validate"); v.Exists() {
		s.AutoValidate = v.Bool()
	}
	if v := gjson.GetBytes(data, "exclude_directories"); v.IsArray() {
		dirs := make([]string, 0, len(v.Array()))
		for _, d := range v.Array() {
			if d.String() != "" {
				dirs = append(dirs, d.String())
			}
		}
		s.ExcludeDirectories = dirs
	}
	if v := gjson.GetBytes(data, "last_index_build"); v.Exists() {
		if ts, err := time.Parse(time.RFC3339, v.String()); err == nil {
			s.LastIndexBuild = ts
		}
	}

	return s, nil
}

// InitSettings writes a fresh .swiftlens.json at root with the given
// settings, overwriting any existing file.
func InitSettings(root string, s Settings) error {
	data := []byte("{}")
	var err error

	if data, err = sjson.SetBytes(data, "max_file_size", s.MaxFileSizeMB); err != nil {
		return NewPathError("write config", root, err)
	}
	if data, err = sjson.SetBytes(data, "enable_cross_file", s.EnableCrossFile); err != nil {
		return NewPathError("write config", root, err)
	}
	if data, err = sjson.SetBytes(data, "auto_validate", s.AutoValidate); err != nil {
		return NewPathError("write config", root, err)
	}
	if data, err = sjson.SetBytes(data, "exclude_directories", s.ExcludeDirectories); err != nil {
		return NewPathError("write config", root, err)
	}
	if !s.LastIndexBuild.IsZero() {
		if data, err = sjson.SetBytes(data, "last_index_build", s.LastIndexBuild.Format(time.RFC3339)); err != nil {
			return NewPathError("write config", root, err)
		}
	}

	path := filepath.Join(root, ConfigFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return NewPathError("write config", root, err)
	}
	return nil
}

// UpdateSetting sets one key in .swiftlens.json in place, creating the file
// if needed and leaving every other key untouched.
func UpdateSetting(root, key string, value any) error {
	path := filepath.Join(root, ConfigFileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return NewPathError("update config", root, err)
		}
		data = []byte("{}")
	}
	if len(data) > MaxConfigFileSize {
		return NewPathError("update config", root, fmt.Errorf("%w: config exceeds %d bytes", ErrFileTooLarge, MaxConfigFileSize))
	}

	updated, err := sjson.SetBytes(data, key, value)
	if err != nil {
		return NewPathError("update config", root, err)
	}

	if err := os.WriteFile(path, updated, 0o644); err != nil {
		return NewPathError("update config", root, err)
	}
	return nil
}

// RecordIndexBuild stamps the config with a successful index build time.
func RecordIndexBuild(root string, at time.Time) error {
	return UpdateSetting(root, "last_index_build", at.Format(time.RFC3339))
}
