package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// cafeSettingsFile mirrors the optional YAML file operators use to describe the café without
// touching environment variables.
//
//	name: Kaldi's Coffee
//	location:
//	  latitude: 9.0320
//	  longitude: 38.7469
//	  address: Bole Road, Addis Ababa
//	contact:
//	  phone: "+251911000000"
//	  email: hello@example.com
//	currency: ETB
//	locale: am-ET
type cafeSettingsFile struct {
	Name     string `yaml:"name"`
	Currency string `yaml:"currency"`
	Locale   string `yaml:"locale"`
	Location *struct {
		Latitude  *float64 `yaml:"latitude"`
		Longitude *float64 `yaml:"longitude"`
		Address   string   `yaml:"address"`
	} `yaml:"location"`
	Contact *struct {
		Phone string `yaml:"phone"`
		Email string `yaml:"email"`
	} `yaml:"contact"`
}

func applyCafeSettings(cafe *CafeConfig, path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("config: cafe settings file %s not found", path)
	}
	if err != nil {
		return fmt.Errorf("config: read cafe settings %s: %w", path, err)
	}

	var settings cafeSettingsFile
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return fmt.Errorf("config: parse cafe settings %s: %w", path, err)
	}

	setString(&cafe.Name, settings.Name)
	setString(&cafe.Locale, settings.Locale)
	if c := strings.TrimSpace(settings.Currency); c != "" {
		cafe.Currency = strings.ToUpper(c)
	}
	if loc := settings.Location; loc != nil {
		if loc.Latitude != nil {
			cafe.Latitude = *loc.Latitude
		}
		if loc.Longitude != nil {
			cafe.Longitude = *loc.Longitude
		}
		setString(&cafe.Address, loc.Address)
	}
	if contact := settings.Contact; contact != nil {
		setString(&cafe.Phone, contact.Phone)
		setString(&cafe.Email, contact.Email)
	}
	return nil
}

func setString(dst *string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		*dst = v
	}
}
