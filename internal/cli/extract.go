package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/evidlabel/did/internal/anonymize"
	"github.com/evidlabel/did/internal/cluster"
	"github.com/evidlabel/did/internal/detect"
	"github.com/evidlabel/did/internal/document"
	"github.com/evidlabel/did/internal/entity"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var flagEntities string

var extractCmd = &cobra.Command{
	Use:   "extract FILE...",
	Short: "Extract entities from documents into a YAML configuration",
	Long: "Extract collects entity mentions from every input document, clusters\n" +
		"spelling and formatting variants into canonical groups, and writes (or\n" +
		"updates) the entity configuration. Review and edit the configuration\n" +
		"before anonymizing.",
	Args: cobra.MinimumNArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringVarP(&flagEntities, "entities", "e", "entities.yaml", "entity configuration file to write or update")
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		exitCode = ExitConfigError
		return err
	}
	defer log.Sync()

	recognizer, err := detect.New(cfg.Detection, log.WithComponent("detect"))
	if err != nil {
		exitCode = ExitConfigError
		return err
	}
	if cfg.Detection.Remote.Enabled {
		recognizer.SetDelegate(detect.NewRemote(cfg.Detection.Remote))
	}

	clusterer := cluster.New(cfg.Clustering.Threshold)
	extractor := anonymize.NewExtractor(recognizer, clusterer, cfg.Language, log.WithComponent("extract"))

	// Reconcile into an existing configuration when one is present, so
	// previously assigned ids stay stable.
	set := entity.NewSet()
	if _, err := os.Stat(flagEntities); err == nil {
		set, err = entity.Load(flagEntities)
		if err != nil {
			exitCode = ExitConfigError
			return err
		}
		log.Info("Updating existing entity configuration",
			zap.String("path", flagEntities),
			zap.Int("groups", set.GroupCount()),
		)
	}

	// Phase one: collect and pool spans across all files.
	failed := 0
	for _, path := range args {
		if err := collectFile(cmd.Context(), extractor, path); err != nil {
			log.WithFile(path).Error("Extraction failed", zap.Error(err))
			failed++
		}
	}

	// Phase two: cluster the pooled spans and reconcile once.
	extractor.Finalize(set)

	if err := entity.Save(set, flagEntities); err != nil {
		exitCode = ExitRuntimeError
		return err
	}

	counts := extractor.Counts()
	fmt.Println("Detected entities:")
	for _, kind := range entity.Kinds {
		fmt.Printf("  %-13s found: %d\n", kind.Section(), counts.Found[kind])
	}
	fmt.Printf("Entity configuration written to %s (%d groups)\n", flagEntities, set.GroupCount())

	if failed > 0 {
		exitCode = ExitFileFailure
		return fmt.Errorf("%d of %d files failed", failed, len(args))
	}
	return nil
}

// collectFile reads one document and feeds it to the extractor.
func collectFile(ctx context.Context, extractor *anonymize.Extractor, path string) error {
	format, err := document.FormatForPath(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return extractor.AddDocument(ctx, string(data), format)
}
