package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ppiankov/mongolens/internal/analyzer"
	"github.com/ppiankov/mongolens/internal/config"
	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create starter " + config.FileName + " and " + analyzer.IgnoreFileName + " in the current directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("getwd: %w", err)
			}

			wrote := 0
			for _, f := range initFiles {
				path := filepath.Join(cwd, f.name)
				if _, err := os.Stat(path); err == nil {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "skip: %s already exists\n", f.name)
					continue
				}
				if err := os.WriteFile(path, []byte(f.content), 0o600); err != nil {
					return fmt.Errorf("write %s: %w", f.name, err)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", f.name)
				wrote++
			}

			if wrote == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Nothing to do: all config files already exist.")
			}
			return nil
		},
	}
	return cmd
}

type initFile struct {
	name    string
	content string
}

var initFiles = []initFile{
	{
		name: config.FileName,
		content: `# mongolens configuration
# See: https://github.com/ppiankov/mongolens

# MongoDB connection URI (overridden by --uri flag or MONGODB_URI env var)
# uri: mongodb://localhost:27017/app

# Restrict analysis (default: all non-system databases and collections)
# databases: [app]
# collections: [orders, users]

sampling:
  size: 200
  max_scan: 5000
  seed: 42
  timeout: 10s

# Heuristic thresholds; omitted keys keep the built-in values.
# thresholds:
#   large_document_bytes: 12582912
#   max_nesting_depth: 10
#   unbounded_array_max: 1000
#   unbounded_array_p95: 500
#   high_cardinality_ratio: 0.5

output:
  dir: report
  format: text
  lang: en

log:
  level: info
  format: text
`,
	},
	{
		name: analyzer.IgnoreFileName,
		content: `# mongolens ignore rules
# Format: TYPE db.collection[.field]
#   TYPE       finding type (e.g. LOW_CARDINALITY_FIELD) or * for any
#   db         database name or * for any
#   collection collection name (supports trailing * glob)
#   field      optional dotted field path
#
# Examples:
# UNBOUNDED_ARRAY app.events.payload.items
# * *.audit_logs
# TYPE_POLYMORPHISM app.legacy_*
`,
	},
}
