package profile

import (
	"context"
	"log"

	"github.com/opst/mdclient/cmd/md/subcommands/common"
	"github.com/opst/mdclient/pkg/configs/profiles"
	"github.com/youta-t/flarc"
)

func NewShow() (flarc.Command, error) {
	return flarc.NewCommand(
		"Show the profile in effect.",
		struct{}{},
		flarc.Args{},
		common.NewTaskWithCommonFlag(ShowTask()),
		flarc.WithDescription(`
Show the profile in effect, after environment variables
(MD_API_BASE_URL, MD_AUTH_TOKEN, MD_CA_CERT) are applied.

The token is masked.
`),
	)
}

type shownProfile struct {
	ApiRoot string `json:"apiRoot"`
	Token   string `json:"token"`
	HasCA   bool   `json:"hasCA"`
}

func ShowTask() common.TaskWithCommonFlag[struct{}] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		commonFlag common.CommonFlags,
		cl flarc.Commandline[struct{}],
		params []any,
	) error {
		prof, err := profiles.Resolve(
			commonFlag.ProfileStore, commonFlag.Profile,
			map[string]string{"apiRoot": commonFlag.ApiRoot},
		)
		if err != nil {
			return err
		}

		token := ""
		if prof.Token != "" {
			token = "********"
		}
		return common.WriteJSON(cl.Stdout(), shownProfile{
			ApiRoot: prof.ApiRoot,
			Token:   token,
			HasCA:   prof.Cert.CA != "",
		})
	}
}
