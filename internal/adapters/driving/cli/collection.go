package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragchat/internal/adapters/driving/shell"
)

var (
	statusJSON bool
	listJSON   bool
	removeYes  bool
	clearYes   bool
)

var statusCmd = &cobra.Command{
	Use:     "status",
	Aliases: []string{"stats"},
	Short:   "Show collection statistics",
	Long: `Shows the number of chunks and documents in the collection. When the
vector store cannot be reached the counts are reported as zero and the
cause is logged.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"sources"},
	Short:   "List indexed documents",
	Args:    cobra.NoArgs,
	RunE:    runList,
}

var removeCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"delete"},
	Short:   "Remove a document from the collection",
	Long: `Removes every chunk of a document. The name is either the source shown by
'ragchat list' or a file name that matches exactly one document.`,
	Args: cobra.ExactArgs(1),
	RunE: runRemove,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every document from the collection",
	Args:  cobra.NoArgs,
	RunE:  runClear,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "output as JSON")
	removeCmd.Flags().BoolVarP(&removeYes, "yes", "y", false, "do not ask for confirmation")
	clearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "do not ask for confirmation")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(clearCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx := commandContext(cmd)
	svc, err := services.Collection(ctx)
	if err != nil {
		return err
	}

	st := svc.Status(ctx)
	if statusJSON {
		return printJSON(cmd, st)
	}
	shell.RenderStatus(cmd.OutOrStdout(), st, svc.ListSources(ctx))
	return nil
}

func runList(cmd *cobra.Command, _ []string) error {
	ctx := commandContext(cmd)
	svc, err := services.Collection(ctx)
	if err != nil {
		return err
	}

	sources := svc.ListSources(ctx)
	if listJSON {
		return printJSON(cmd, sources)
	}
	shell.RenderSources(cmd.OutOrStdout(), sources)
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	svc, err := services.Collection(ctx)
	if err != nil {
		return err
	}

	name := args[0]
	if !removeYes && !confirm(cmd, fmt.Sprintf("Remove every chunk of %s?", name)) {
		cmd.Println("Cancelled.")
		return nil
	}

	removed, err := svc.RemoveSource(ctx, name)
	if err != nil {
		return describe(err)
	}
	cmd.Printf("Removed %s.\n", removed)
	return nil
}

func runClear(cmd *cobra.Command, _ []string) error {
	ctx := commandContext(cmd)
	svc, err := services.Collection(ctx)
	if err != nil {
		return err
	}

	st := svc.Status(ctx)
	if st.Chunks == 0 {
		cmd.Println("The collection is already empty.")
		return nil
	}

	question := fmt.Sprintf("Remove all %d chunks of collection %s?", st.Chunks, st.Collection)
	if !clearYes && !confirm(cmd, question) {
		cmd.Println("Cancelled.")
		return nil
	}

	if err := svc.ClearAll(ctx); err != nil {
		return describe(err)
	}
	cmd.Println("Collection cleared.")
	return nil
}

// confirm asks question on the command input and accepts only "yes".
func confirm(cmd *cobra.Command, question string) bool {
	cmd.Printf("%s Type 'yes' to confirm: ", question)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && err != io.EOF {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(line), "yes")
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
