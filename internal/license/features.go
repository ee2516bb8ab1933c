package license

import (
	"context"
	"time"
)

// Feature flags gated by the license edition.
const (
	FeatureRemoteConsole = "remote_console"
	FeatureRemoteDesktop = "remote_desktop"
	FeatureFileMonitor   = "file_monitor"
	FeatureEventMonitor  = "event_monitor"
	FeatureScripts       = "scripts"
)

var allFeatures = []string{
	FeatureRemoteConsole,
	FeatureRemoteDesktop,
	FeatureFileMonitor,
	FeatureEventMonitor,
	FeatureScripts,
}

// editionFeatures maps each edition to the features it unlocks.
var editionFeatures = map[string][]string{
	"development":  allFeatures,
	"standard":     {FeatureRemoteConsole},
	"professional": {FeatureRemoteConsole, FeatureRemoteDesktop, FeatureScripts},
	"enterprise":   allFeatures,
}

// HasFeature reports whether the installed license unlocks the feature.
// An expired license unlocks nothing.
func (s *Service) HasFeature(ctx context.Context, flag string) (bool, error) {
	l, err := s.Get(ctx)
	if err != nil {
		return false, err
	}
	if l.ExpiresAt != nil && l.ExpiresAt.Before(time.Now()) {
		return false, nil
	}
	for _, f := range editionFeatures[l.Edition] {
		if f == flag {
			return true, nil
		}
	}
	return false, nil
}

// Features returns the feature list unlocked by the installed license.
func (s *Service) Features(ctx context.Context) ([]string, error) {
	l, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	if l.ExpiresAt != nil && l.ExpiresAt.Before(time.Now()) {
		return []string{}, nil
	}
	features := editionFeatures[l.Edition]
	if features == nil {
		features = []string{}
	}
	return features, nil
}
