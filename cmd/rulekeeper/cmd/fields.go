package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/solatis/rulekeeper/internal/rules"
	"github.com/solatis/rulekeeper/internal/types"
)

var fieldsCmd = &cobra.Command{
	Use:   "fields [entity-type]",
	Short: "List rule builder fields and their operators",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runFields,
}

func init() {
	rootCmd.AddCommand(fieldsCmd)
	fieldsCmd.Flags().String("catalog", "", "field catalog YAML (default: embedded catalog)")
}

func runFields(cmd *cobra.Command, args []string) error {
	catalogPath, _ := cmd.Flags().GetString("catalog")
	registry, err := rules.LoadRegistry(catalogPath)
	if err != nil {
		return fmt.Errorf("failed to load field catalog: %w", err)
	}

	entityTypes := types.EntityTypes
	if len(args) == 1 {
		et := types.EntityType(args[0])
		if !et.Valid() {
			return fmt.Errorf("%w: %q", types.ErrUnknownEntityType, args[0])
		}
		entityTypes = []types.EntityType{et}
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ENTITY\tFIELD\tLABEL\tTYPE\tOPERATORS\tOPTIONS")
	for _, et := range entityTypes {
		for _, f := range registry.FieldsFor(et) {
			var ops []string
			for _, op := range rules.OperatorsFor(f.ValueType) {
				ops = append(ops, string(op))
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				et, f.Key, f.Label, f.ValueType, strings.Join(ops, ","), strings.Join(f.Options, ","))
		}
	}
	return w.Flush()
}
