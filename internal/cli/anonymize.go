package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/evidlabel/did/internal/anonymize"
	"github.com/evidlabel/did/internal/cluster"
	"github.com/evidlabel/did/internal/detect"
	"github.com/evidlabel/did/internal/entity"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	flagAnonEntities string
	flagOutputDir    string
	flagUpdate       bool
)

var anonymizeCmd = &cobra.Command{
	Use:   "anonymize FILE...",
	Short: "Anonymize documents using an entity configuration",
	Long: "Anonymize replaces every occurrence of every configured entity variant\n" +
		"(and pattern match) with the group's placeholder id. Mentions the\n" +
		"recognizer finds that match no configured group are assigned fresh ids.\n" +
		"Outputs are written next to each input as <name>_anon<ext> unless an\n" +
		"output directory is given.",
	Args: cobra.MinimumNArgs(1),
	RunE: runAnonymize,
}

func init() {
	anonymizeCmd.Flags().StringVarP(&flagAnonEntities, "entities", "e", "entities.yaml", "entity configuration file")
	anonymizeCmd.Flags().StringVarP(&flagOutputDir, "output-dir", "o", "", "directory for anonymized output files")
	anonymizeCmd.Flags().BoolVar(&flagUpdate, "update", false, "persist newly discovered entities back to the configuration")
}

func runAnonymize(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		exitCode = ExitConfigError
		return err
	}
	defer log.Sync()

	// Configuration problems abort the whole run: correctness of every
	// replacement depends on a valid entity set.
	set, err := entity.Load(flagAnonEntities)
	if err != nil {
		exitCode = ExitConfigError
		return err
	}

	recognizer, err := detect.New(cfg.Detection, log.WithComponent("detect"))
	if err != nil {
		exitCode = ExitConfigError
		return err
	}
	if cfg.Detection.Remote.Enabled {
		recognizer.SetDelegate(detect.NewRemote(cfg.Detection.Remote))
	}

	engine := anonymize.NewEngine(recognizer, cluster.New(cfg.Clustering.Threshold), cfg.Language, log.WithComponent("anonymize"))

	// Files are processed sequentially against the shared set: a group
	// minted for file 1 keeps its id in file 2.
	failed := 0
	configChanged := false
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			log.WithFile(path).Error("Anonymization failed", zap.Error(err))
			failed++
			continue
		}

		result, err := engine.AnonymizeFile(cmd.Context(), path, string(data), set)
		if err != nil {
			// One bad document does not block the batch.
			log.WithFile(path).Error("Anonymization failed", zap.Error(err))
			failed++
			continue
		}
		configChanged = configChanged || result.ConfigChanged

		outPath := outputPath(path, flagOutputDir)
		if err := os.WriteFile(outPath, []byte(result.Text), 0o644); err != nil {
			log.WithFile(path).Error("Failed to write output", zap.Error(err))
			failed++
			continue
		}

		fmt.Printf("%s -> %s\n", path, outPath)
		for _, kind := range entity.Kinds {
			if n := result.Counts.Replaced[kind]; n > 0 {
				fmt.Printf("  %-13s replaced: %d\n", kind.Section(), n)
			}
		}
		if result.Counts.Minted > 0 {
			fmt.Printf("  new groups assigned: %d\n", result.Counts.Minted)
		}
	}

	if configChanged && flagUpdate {
		if err := entity.Save(set, flagAnonEntities); err != nil {
			exitCode = ExitRuntimeError
			return err
		}
		fmt.Printf("Entity configuration updated: %s\n", flagAnonEntities)
	} else if configChanged {
		fmt.Println("New entities were discovered; re-run with --update to persist them.")
	}

	if failed > 0 {
		exitCode = ExitFileFailure
		return fmt.Errorf("%d of %d files failed", failed, len(args))
	}
	return nil
}

// outputPath derives the output file path: into dir when given, otherwise
// <stem>_anon<ext> next to the input.
func outputPath(input, dir string) string {
	if dir != "" {
		return filepath.Join(dir, filepath.Base(input))
	}
	ext := filepath.Ext(input)
	stem := strings.TrimSuffix(input, ext)
	return stem + "_anon" + ext
}
