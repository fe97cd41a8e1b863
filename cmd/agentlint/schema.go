package main

import (
	"fmt"
	"os"

	"github.com/jingkaihe/agentlint/pkg/presenter"
	"github.com/jingkaihe/agentlint/pkg/schema"
	"github.com/spf13/cobra"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the agent frontmatter JSON schema",
	Long: `Print the JSON schema describing valid agent frontmatter to stdout.

The schema can be wired into editors for completion and inline
validation of agent definition files.`,
	Run: func(cmd *cobra.Command, args []string) {
		jsonData, err := schema.JSON()
		if err != nil {
			presenter.Error(err, "failed to generate schema")
			os.Exit(1)
		}
		fmt.Println(string(jsonData))
	},
}
