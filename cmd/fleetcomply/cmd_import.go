package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"fleetcomply/internal/fields"
	"fleetcomply/internal/importer"
	"fleetcomply/internal/model"
)

var (
	importTenant string
	importType   string
	importDryRun bool
)

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Validate and import a vehicle spreadsheet (.xlsx or .csv)",
	Long: `Imports every valid row of FILE into a vehicle type. Without --type the
vehicle type is detected from the file name. With --dry-run only the
validation summary and the first invalid rows are printed.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVarP(&importTenant, "tenant", "t", "", "tenant name")
	importCmd.Flags().StringVar(&importType, "type", "", "vehicle type id or slug (default: detect from file name)")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "validate only")
	_ = importCmd.MarkFlagRequired("tenant")
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	path := args[0]

	tenantID, err := resolveTenant(cmd, st, importTenant)
	if err != nil {
		return err
	}

	var vt *model.VehicleType
	if importType != "" {
		if vt, err = findVehicleType(cmd, st, tenantID, importType); err != nil {
			return err
		}
	} else {
		types, err := st.ListVehicleTypes(ctx, tenantID)
		if err != nil {
			return err
		}
		det := importer.NewDetector().Detect(path, types)
		if det.NeedsSelection {
			return fmt.Errorf("cannot tell the vehicle type of %s (confidence %.2f), pass --type", filepath.Base(path), det.Confidence)
		}
		if vt, err = st.GetVehicleType(ctx, tenantID, *det.VehicleTypeID); err != nil {
			return err
		}
		fmt.Fprintf(out, "detected vehicle type %s (%s, confidence %.2f)\n", vt.Name, det.Method, det.Confidence)
	}

	schema, err := fields.NewSchema(vt.Fields)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	parsed, err := importer.Parse(filepath.Base(path), f, schema)
	if err != nil {
		return err
	}
	if len(parsed.Headers.Unmapped) > 0 {
		fmt.Fprintf(out, "ignored columns: %v\n", parsed.Headers.Unmapped)
	}

	if importDryRun {
		preview := parsed.Preview(importer.PreviewOptions{PerPage: len(parsed.Rows) + 1, MaxPer: len(parsed.Rows) + 1})
		fmt.Fprintf(out, "rows: %d  valid: %d  invalid: %d\n", preview.TotalRows, preview.ValidRows, preview.InvalidRows)
		shown := 0
		for _, r := range preview.Rows {
			if r.IsValid || shown >= importer.MaxReportedErrors {
				continue
			}
			fmt.Fprintf(out, "  row %d: %s\n", r.RowNumber, importer.ErrorSummary(r.RowNumber, r.Errors).Message)
			shown++
		}
		return nil
	}

	coordinator := importer.NewCoordinator(st, logger)
	result, err := coordinator.Run(ctx, importer.ImportOptions{TenantID: tenantID, VehicleType: vt, Parsed: parsed},
		func(evt importer.ProgressEvent) { fmt.Fprintln(out, evt.Message) })
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "imported: %d  failed: %d  total: %d\n", result.Imported, result.Failed, result.TotalRows)
	for _, e := range result.Errors {
		fmt.Fprintf(out, "  row %d: %s\n", e.RowNumber, e.Message)
	}
	return nil
}
