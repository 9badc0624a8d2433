package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/swasya-health/capture-pipeline/internal/model"
	"github.com/swasya-health/capture-pipeline/internal/registry"
)

var (
	registerPhone   string
	registerAge     int
	registerGender  string
	registerVillage string
)

var patientsCmd = &cobra.Command{
	Use:   "patients",
	Short: "Manage the patient registry",
}

var patientsRegisterCmd = &cobra.Command{
	Use:   "register <name>",
	Short: "Register a new patient and print the assigned ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		p, err := registry.New(st).Register(cmd.Context(), &model.Patient{
			Name:    args[0],
			Phone:   registerPhone,
			Age:     registerAge,
			Gender:  registerGender,
			Village: registerVillage,
		})
		if err != nil {
			return err
		}

		fmt.Printf("registered %s as %s\n", p.Name, p.ID)
		return nil
	},
}

var patientsGetCmd = &cobra.Command{
	Use:   "get <patient-id>",
	Short: "Show a registered patient",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		p, err := registry.New(st).Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	},
}

var patientsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered patients",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		patients, err := st.ListPatients(cmd.Context(), 0)
		if err != nil {
			return err
		}

		for _, p := range patients {
			fmt.Printf("%s  %-24s %s\n", p.ID, p.Name, p.Village)
		}
		fmt.Printf("%d patients\n", len(patients))
		return nil
	},
}

func init() {
	patientsRegisterCmd.Flags().StringVar(&registerPhone, "phone", "", "contact phone number")
	patientsRegisterCmd.Flags().IntVar(&registerAge, "age", 0, "patient age")
	patientsRegisterCmd.Flags().StringVar(&registerGender, "gender", "", "patient gender")
	patientsRegisterCmd.Flags().StringVar(&registerVillage, "village", "", "home village")
	patientsCmd.AddCommand(patientsRegisterCmd, patientsGetCmd, patientsListCmd)
	rootCmd.AddCommand(patientsCmd)
}
