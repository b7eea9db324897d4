package profile

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/opst/mdclient/cmd/md/subcommands/common"
	"github.com/opst/mdclient/pkg/configs/profiles"
	"github.com/youta-t/flarc"
)

type SetFlags struct {
	Url    string `flag:"url" metavar:"URL" help:"base URL of the API (e.g. https://md.example.com/api/v2)."`
	Token  string `flag:"token" help:"bearer token."`
	CACert string `flag:"ca-cert" metavar:"FILE" help:"PEM file of CA certificate to trust, for self-signed servers."`
}

const ARG_PROFILE_NAME = "PROFILE_NAME"

func NewSet() (flarc.Command, error) {
	return flarc.NewCommand(
		"Register or update a profile.",
		SetFlags{},
		flarc.Args{
			{
				Name: ARG_PROFILE_NAME, Required: false,
				Help: "name of the profile. If omitted, --profile is used.",
			},
		},
		common.NewTaskWithCommonFlag(SetTask()),
		flarc.WithDescription(`
Register a profile to your profile store, or update it.

Fields not given are kept as they were.

Example
-------

	{{ .Command }} --url https://md.example.com/api/v2 --token "$TOKEN"
`),
	)
}

func SetTask() common.TaskWithCommonFlag[SetFlags] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		commonFlag common.CommonFlags,
		cl flarc.Commandline[SetFlags],
		params []any,
	) error {
		name := commonFlag.Profile
		if args := cl.Args()[ARG_PROFILE_NAME]; 0 < len(args) && args[0] != "" {
			name = args[0]
		}
		if name == "" {
			return fmt.Errorf("%w: profile name is required", flarc.ErrUsage)
		}
		if commonFlag.ProfileStore == "" {
			return fmt.Errorf("%w: --profile-store is required", flarc.ErrUsage)
		}

		store, err := profiles.LoadProfileStore(commonFlag.ProfileStore)
		if errors.Is(err, profiles.ErrProfileStoreNotFound) {
			store = profiles.ProfileStore{}
		} else if err != nil {
			return err
		}

		prof, ok := store[name]
		if !ok || prof == nil {
			prof = &profiles.Profile{}
		}

		flags := cl.Flags()
		if flags.Url != "" {
			prof.ApiRoot = flags.Url
		}
		if flags.Token != "" {
			prof.Token = flags.Token
		}
		if flags.CACert != "" {
			pem, err := os.ReadFile(flags.CACert)
			if err != nil {
				return fmt.Errorf("cannot read CA certificate: %w", err)
			}
			prof.Cert.CA = base64.StdEncoding.EncodeToString(pem)
		}
		if err := prof.Verify(); err != nil {
			return errors.Join(flarc.ErrUsage, err)
		}

		store[name] = prof
		if err := store.Save(commonFlag.ProfileStore); err != nil {
			return err
		}
		logger.Printf("profile '%s' is saved in %s", name, commonFlag.ProfileStore)
		return nil
	}
}
