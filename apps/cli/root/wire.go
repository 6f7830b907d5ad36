package root

import (
	"github.com/orderline-app/orderline/apps/cli/cmd/auth"
	"github.com/orderline-app/orderline/apps/cli/cmd/bootstrap"
	"github.com/orderline-app/orderline/apps/cli/cmd/ecosystem"
	"github.com/orderline-app/orderline/apps/cli/cmd/store"
)

func init() {
	Root().AddCommand(auth.Command())
	Root().AddCommand(bootstrap.Command())
	Root().AddCommand(store.Command())
	Root().AddCommand(ecosystem.Command())
}
