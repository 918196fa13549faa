package models

import (
	"encoding/json"
	"fmt"
)

// ProfileVersion is the current serialization version for stored profiles.
// Version 1 predates the marketing opt-in toggle.
const ProfileVersion = 2

// UserProfile holds locally-owned identity and preferences. It is created
// with defaults on first load and mutated by the profile screens; every
// mutation is persisted.
type UserProfile struct {
	Version      int    `json:"version"`
	DisplayName  string `json:"displayName"`
	Email        string `json:"email"`
	Signature    string `json:"signature"`
	LoggedIn     bool   `json:"loggedIn"`
	ImageDataURL string `json:"imageDataUrl,omitempty"`

	Incognito           bool `json:"incognito"`
	BiometricLock       bool `json:"biometricLock"`
	NotifyAnalysisReady bool `json:"notifyAnalysisReady"`
	NotifyGuideUpdates  bool `json:"notifyGuideUpdates"`
	NotifyDeadlines     bool `json:"notifyDeadlines"`
	MarketingOptIn      bool `json:"marketingOptIn"`
}

// DefaultProfile returns the profile created on first load.
func DefaultProfile() *UserProfile {
	return &UserProfile{
		Version:             ProfileVersion,
		DisplayName:         "Guest",
		NotifyAnalysisReady: true,
		NotifyDeadlines:     true,
	}
}

// DecodeProfile unmarshals a stored profile and migrates it to the current
// version. Unknown future versions are rejected rather than guessed at.
func DecodeProfile(data []byte) (*UserProfile, error) {
	var p UserProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	if p.Version > ProfileVersion {
		return nil, fmt.Errorf("unsupported profile version %d", p.Version)
	}
	if p.Version < 2 {
		// v1 had no marketing toggle; captured users were never opted in.
		p.MarketingOptIn = false
		p.Version = 2
	}
	return &p, nil
}
