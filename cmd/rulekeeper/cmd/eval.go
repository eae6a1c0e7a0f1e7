package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/solatis/rulekeeper/internal/rules"
	"github.com/solatis/rulekeeper/internal/types"
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Evaluate a rule file against an entity file",
	Long: `Evaluate a rule against one entity and print the evaluation trace as JSON.
Use "-" to read the entity from stdin. With --entity-type the rule is also
validated against that type's field catalog.`,
	RunE: runEval,
}

func init() {
	rootCmd.AddCommand(evalCmd)
	evalCmd.Flags().String("rule", "", "rule JSON file (required)")
	evalCmd.Flags().String("entity", "-", "entity JSON file, - for stdin")
	evalCmd.Flags().String("entity-type", "", "validate against this entity type (actors, vulnerabilities, incidents, iocs)")
	evalCmd.Flags().String("catalog", "", "field catalog YAML (default: embedded catalog)")
	_ = evalCmd.MarkFlagRequired("rule")
}

type evalOutput struct {
	Result types.EvaluationResult `json:"result"`
	Issues []rules.Issue          `json:"issues,omitempty"`
}

func runEval(cmd *cobra.Command, args []string) error {
	rulePath, _ := cmd.Flags().GetString("rule")
	entityPath, _ := cmd.Flags().GetString("entity")
	entityType, _ := cmd.Flags().GetString("entity-type")
	catalogPath, _ := cmd.Flags().GetString("catalog")

	ruleData, err := readInput(cmd, rulePath, types.MaxRuleSize)
	if err != nil {
		return fmt.Errorf("failed to read rule: %w", err)
	}
	root, err := types.ParseRule(ruleData)
	if err != nil {
		return fmt.Errorf("failed to parse rule: %w", err)
	}

	entityData, err := readInput(cmd, entityPath, types.MaxEntitySize)
	if err != nil {
		return fmt.Errorf("failed to read entity: %w", err)
	}

	registry, err := rules.LoadRegistry(catalogPath)
	if err != nil {
		return fmt.Errorf("failed to load field catalog: %w", err)
	}
	engine := rules.NewEngine(registry)

	out := evalOutput{Result: engine.Test(root, entityData)}
	if entityType != "" {
		et := types.EntityType(entityType)
		if !et.Valid() {
			return fmt.Errorf("%w: %q", types.ErrUnknownEntityType, entityType)
		}
		out.Issues = engine.Validate(root, et)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// readInput reads path, or stdin for "-", refusing more than limit bytes.
func readInput(cmd *cobra.Command, path string, limit int) ([]byte, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	data, err := io.ReadAll(io.LimitReader(r, int64(limit)+1))
	if err != nil {
		return nil, err
	}
	if len(data) > limit {
		return nil, fmt.Errorf("input exceeds %d bytes", limit)
	}
	return data, nil
}
