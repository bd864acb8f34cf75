// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"scarb/pkg/core"
	"scarb/pkg/ops"
)

var (
	publishIndex   string
	publishPackage string

	// publishCmd packages a member and uploads it to a registry.
	publishCmd = &cobra.Command{
		Use:   "publish",
		Short: "Upload a package to a registry",
		Long: `Archive a workspace member as a tarball and upload it to the registry
named by --index. file:// URLs denote local directory registries.`,
		Args: cobra.NoArgs,
		RunE: runPublish,
	}
)

func init() {
	publishCmd.Flags().StringVar(&publishIndex, "index", "", "registry URL to publish to")
	publishCmd.Flags().StringVarP(&publishPackage, "package", "p", "", "workspace member to publish")
	_ = publishCmd.MarkFlagRequired("index")
}

func runPublish(cmd *cobra.Command, _ []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}

	pkg, err := selectMember(app.Workspace, publishPackage)
	if err != nil {
		return err
	}

	indexId, err := core.NewRegistrySourceId(publishIndex)
	if err != nil {
		return err
	}
	return ops.Publish(cmd.Context(), pkg, app.Workspace, app.Cache, indexId, app.Config.Ui)
}

// selectMember picks the workspace member a package-scoped command
// operates on. With a single member no flag is needed.
func selectMember(ws *core.Workspace, name string) (*core.Package, error) {
	if name == "" {
		if len(ws.Members) == 1 {
			return ws.Members[0], nil
		}
		return nil, fmt.Errorf("the workspace has multiple members, use --package to pick one")
	}
	pkgName, err := core.NewPackageName(name)
	if err != nil {
		return nil, err
	}
	member, ok := ws.Member(pkgName)
	if !ok {
		return nil, fmt.Errorf("package `%s` is not a member of this workspace", name)
	}
	return member, nil
}
