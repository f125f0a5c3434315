package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"churnguard/config"
	"churnguard/db"
	"churnguard/logging"
	"churnguard/service"
)

func main() {
	if err := newCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newCmd() *cobra.Command {
	var (
		configPath string
		history    int
	)
	cmd := &cobra.Command{
		Use:          "train_model",
		Short:        "Fit the churn model from the configured dataset and save it to the store",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return train(cmd, config.ResolvePath(configPath), history)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file")
	cmd.Flags().IntVar(&history, "history", 5, "recent training runs to list afterwards (sqlite store only)")
	return cmd
}

func train(cmd *cobra.Command, path string, history int) error {
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, _, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	svc, store, err := service.Build(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	start := time.Now()
	model, err := svc.Fit(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to train model: %w", err)
	}
	if err := svc.Save(cmd.Context(), model); err != nil {
		return fmt.Errorf("failed to save model: %w", err)
	}

	out := cmd.OutOrStdout()
	m := model.Metrics
	fmt.Fprintf(out, "trained on %d rows from %s in %s\n", model.TrainingRows, model.Source, time.Since(start).Round(time.Millisecond))
	fmt.Fprintf(out, "held-out (%d train / %d test): accuracy=%.4f precision=%.4f recall=%.4f f1=%.4f\n",
		m.TrainRows, m.TestRows, m.Accuracy, m.Precision, m.Recall, m.F1)
	fmt.Fprintf(out, "model saved to %s store at %s\n", cfg.Store.Driver, cfg.Store.Path)

	sqlite, ok := store.(*db.SQLiteStore)
	if !ok || history <= 0 {
		return nil
	}
	logs, err := sqlite.TrainingLog(cmd.Context(), history)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TRAINED AT\tROWS\tACCURACY\tF1")
	for _, l := range logs {
		fmt.Fprintf(w, "%s\t%d\t%.4f\t%.4f\n", l.TrainedAt.Format(time.RFC3339), l.DataPoints, l.Accuracy, l.F1)
	}
	return w.Flush()
}
