package main

import (
	"os"

	"github.com/ACONIO/swstb.crm.birthdays-new/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
