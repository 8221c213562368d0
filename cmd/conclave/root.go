package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "conclave",
	Short: "Run a multi-agent debate to consensus",
	Long: `conclave drives a panel of external AI agent CLIs through
propose, critique, revise, and vote rounds until the panel reaches
quantitative consensus on a question, or exhausts its round budget.`,
}
