package common

import (
	"time"

	"github.com/opst/mdclient/pkg/configs/profiles"
)

type CommonFlags struct {
	Profile      string `flag:"profile" help:"profile name to use"`
	ProfileStore string `flag:"profile-store" help:"path to profile store file"`
	ApiRoot      string `flag:"api-root" metavar:"URL" help:"base URL of the API. It overrides the profile."`
}

// Flags returns CommonFlags with default values.
//
// The profile store is ~/.md/profile, if the home directory is known.
func Flags() CommonFlags {
	store, err := profiles.DefaultStorePath()
	if err != nil {
		store = ""
	}
	return CommonFlags{
		Profile:      profiles.DefaultProfileName,
		ProfileStore: store,
	}
}

const (
	DefaultPollInterval = 10 * time.Second
	DefaultPollTimeout  = 30 * time.Minute
)
