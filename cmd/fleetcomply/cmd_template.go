package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"fleetcomply/internal/fields"
	"fleetcomply/internal/importer"
	"fleetcomply/internal/model"
	"fleetcomply/internal/store"
)

var (
	templateTenant string
	templateType   string
	templateOut    string
)

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Write the xlsx import template of a vehicle type",
	RunE:  runTemplate,
}

func init() {
	templateCmd.Flags().StringVarP(&templateTenant, "tenant", "t", "", "tenant name")
	templateCmd.Flags().StringVar(&templateType, "type", "", "vehicle type id or slug")
	templateCmd.Flags().StringVarP(&templateOut, "output", "o", "", "output path (default: the template file name)")
	_ = templateCmd.MarkFlagRequired("tenant")
	_ = templateCmd.MarkFlagRequired("type")
}

func runTemplate(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	tenantID, err := resolveTenant(cmd, st, templateTenant)
	if err != nil {
		return err
	}
	vt, err := findVehicleType(cmd, st, tenantID, templateType)
	if err != nil {
		return err
	}
	schema, err := fields.NewSchema(vt.Fields)
	if err != nil {
		return err
	}
	f, err := importer.BuildTemplate(vt, schema)
	if err != nil {
		return err
	}
	defer f.Close()

	out := templateOut
	if out == "" {
		out = importer.TemplateFilename(vt)
	}
	if err := f.SaveAs(out); err != nil {
		return fmt.Errorf("save template: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "template written to %s\n", out)
	return nil
}

// findVehicleType 按 id 或 slug 查找车辆类型
func findVehicleType(cmd *cobra.Command, st *store.Store, tenantID int64, ref string) (*model.VehicleType, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return st.GetVehicleType(cmd.Context(), tenantID, id)
	}
	types, err := st.ListVehicleTypes(cmd.Context(), tenantID)
	if err != nil {
		return nil, err
	}
	for i := range types {
		if types[i].Slug == ref {
			return &types[i], nil
		}
	}
	return nil, fmt.Errorf("vehicle type %q: %w", ref, store.ErrNotFound)
}
